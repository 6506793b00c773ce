package tokenstore

import "errors"

var (
	// ErrNotFound: el registro no existe. Solo Consume lo expone al llamador;
	// las lecturas devuelven (nil, nil).
	ErrNotFound = errors.New("tokenstore: not found")

	// ErrUnprocessed: un borrado en lote dejó items sin procesar.
	ErrUnprocessed = errors.New("tokenstore: unprocessed items in batch")

	ErrUnknownDriver = errors.New("tokenstore: unknown driver")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
