// Package visa firma visas GA4GH en sus dos formas:
//
//   - JWT: JWS RS256 con header {alg, typ:"JWT", kid}.
//   - compacta: aserciones "k:v" ordenadas y unidas por espacios, firmadas
//     con Ed25519 crudo (sin envoltorio JWS). Se serializa como JSON
//     {v, k, s, i?}.
//
// En la forma compacta el orden byte a byte de las aserciones es parte del
// contrato de firma: cualquier verificador reconstruye el mismo string.
package visa
