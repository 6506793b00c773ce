// Package tokenstore persiste el estado de protocolo de un motor OIDC
// (sesiones, códigos, tokens, grants, interacciones) sobre un Backend
// intercambiable.
//
// Cada Adapter atiende un kind y guarda sus registros bajo "<Kind>-<id>".
// Los registros con expiresAt vencido se consideran ausentes en toda
// lectura, aunque el backend todavía no los haya borrado físicamente.
//
// Los backends se registran desde el init() de su paquete:
//
//	import _ "github.com/dropDatabas3/hellopassport/internal/tokenstore/memory"
//
//	b, err := tokenstore.Open(ctx, tokenstore.Config{Driver: "memory"})
//	sessions := tokenstore.New(b, tokenstore.KindSession)
package tokenstore
