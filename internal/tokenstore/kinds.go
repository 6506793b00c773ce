package tokenstore

// Kinds de registro del motor de protocolo.
const (
	KindSession                          = "Session"
	KindAccessToken                      = "AccessToken"
	KindAuthorizationCode                = "AuthorizationCode"
	KindRefreshToken                     = "RefreshToken"
	KindDeviceCode                       = "DeviceCode"
	KindClientCredentials                = "ClientCredentials"
	KindClient                           = "Client"
	KindInitialAccessToken               = "InitialAccessToken"
	KindRegistrationAccessToken          = "RegistrationAccessToken"
	KindInteraction                      = "Interaction"
	KindReplayDetection                  = "ReplayDetection"
	KindPushedAuthorizationRequest       = "PushedAuthorizationRequest"
	KindGrant                            = "Grant"
	KindBackchannelAuthenticationRequest = "BackchannelAuthenticationRequest"

	// KindFixture guarda configuración auxiliar del banco de pruebas.
	KindFixture = "Fixture"
)

// Kinds lista todos los kinds conocidos.
func Kinds() []string {
	return []string{
		KindSession, KindAccessToken, KindAuthorizationCode, KindRefreshToken,
		KindDeviceCode, KindClientCredentials, KindClient, KindInitialAccessToken,
		KindRegistrationAccessToken, KindInteraction, KindReplayDetection,
		KindPushedAuthorizationRequest, KindGrant, KindBackchannelAuthenticationRequest,
		KindFixture,
	}
}
