// Package keys modela el material de firma privado del sistema.
//
// Key es una unión cerrada: solo *RSAKey (firma JWT) y *Ed25519Key (firma
// de visas compactas) la implementan. Los firmantes reciben el tipo
// concreto, así que una combinación inválida no compila. Lo único que sale
// del proceso es la proyección pública (DerivePublicJWKS).
package keys
