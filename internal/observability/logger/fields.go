package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos de dominio

func KID(v string) zap.Field      { return zap.String("kid", v) }
func Subject(v string) zap.Field  { return zap.String("subject", v) }
func Issuer(v string) zap.Field   { return zap.String("issuer", v) }
func Kind(v string) zap.Field     { return zap.String("kind", v) }
func GrantID(v string) zap.Field  { return zap.String("grant_id", v) }
func VisaForm(v string) zap.Field { return zap.String("visa_form", v) }
func Backend(v string) zap.Field  { return zap.String("backend", v) }

// Campos genéricos

func Count(v int) zap.Field              { return zap.Int("count", v) }
func Bytes(v int) zap.Field              { return zap.Int("bytes", v) }
func Op(v string) zap.Field              { return zap.String("op", v) }
func Err(err error) zap.Field            { return zap.Error(err) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// HTTP

func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func RequestID(v string) zap.Field { return zap.String("request_id", v) }
