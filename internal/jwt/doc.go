// Package jwt firma y verifica JWT con claves RSA del registry (golang-jwt v5).
// Lo usan las visas JWT y los pasaportes; ambos comparten el mismo header
// {alg, typ, kid} y solo cambia typ.
package jwt
