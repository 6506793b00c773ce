package tokenstore

import (
	"encoding/json"
	"math"
	"time"
)

// Index es un atributo secundario proyectado desde el payload.
type Index string

const (
	IndexUID      Index = "uid"
	IndexGrantID  Index = "grantId"
	IndexUserCode Index = "userCode"
)

// Indexes en orden estable.
var Indexes = []Index{IndexUID, IndexGrantID, IndexUserCode}

// FieldConsumed es el campo del payload que marca Consume.
const FieldConsumed = "consumed"

// Payload es el documento opaco del motor de protocolo.
//
// Todos los backends lo guardan como JSON (o su equivalente en DynamoDB),
// así que al leerlo los números vuelven como float64 sin importar el tipo
// entero con que se escribieron. Comparar con EqualValues o usar Consumed.
type Payload map[string]any

// String devuelve payload[key] si es un string no vacío.
func (p Payload) String(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok && s != ""
}

// Consumed devuelve el timestamp unix de consumo, si existe.
// Tolera los tipos numéricos que dejan los distintos decoders.
func (p Payload) Consumed() (int64, bool) {
	switch v := p[FieldConsumed].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(math.Round(v)), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// Record es la unidad que escribe y lee un Backend.
type Record struct {
	Key       string           `json:"key"`
	Payload   Payload          `json:"payload"`
	ExpiresAt int64            `json:"expiresAt,omitempty"` // unix seconds; 0 = sin vencimiento
	Indexes   map[Index]string `json:"indexes,omitempty"`
}

// IsExpired es la única regla de vencimiento: expiresAt presente y <= now.
func IsExpired(rec *Record, now time.Time) bool {
	return rec != nil && rec.ExpiresAt > 0 && rec.ExpiresAt <= now.Unix()
}

// newRecord es el primer paso del plan de escritura: payload + vencimiento.
func newRecord(key string, payload Payload, ttlSeconds int64, now time.Time) *Record {
	rec := &Record{Key: key, Payload: payload}
	if rec.Payload == nil {
		rec.Payload = Payload{}
	}
	if ttlSeconds > 0 {
		rec.ExpiresAt = now.Unix() + ttlSeconds
	}
	return rec
}

// projectIndexes es el segundo paso: copia los atributos indexables presentes.
func projectIndexes(payload Payload) map[Index]string {
	out := map[Index]string{}
	for _, idx := range Indexes {
		if v, ok := payload.String(string(idx)); ok {
			out[idx] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Encode / DecodeRecord son el formato JSON que usan memory y redis.
func (r *Record) Encode() ([]byte, error) { return json.Marshal(r) }

func DecodeRecord(b []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	if rec.Payload == nil {
		rec.Payload = Payload{}
	}
	return &rec, nil
}
