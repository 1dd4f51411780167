package domain

import "errors"

// Taxonomía de errores del core. Los componentes envuelven estos sentinels con
// fmt.Errorf("%w: ...") y los llamadores los distinguen con errors.Is.
var (
	// ErrConfiguration marca parámetros inválidos (p.ej. fast >= slow). Se
	// devuelve en construcción y nunca se corrige en silencio.
	ErrConfiguration = errors.New("configuration error")

	// ErrSchema indica que la columna de precio no existe o no es numérica.
	ErrSchema = errors.New("schema error")

	// ErrEmptyInput indica una serie de entrada vacía.
	ErrEmptyInput = errors.New("empty input")

	// ErrRange indica un valor de señal fuera de [-1, 1].
	ErrRange = errors.New("range error")

	// ErrInvalidOrder lo devuelve el ledger ante un execute mal formado.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrOrderRejected indica un retcode distinto de éxito. No se reintenta
	// dentro del mismo ciclo.
	ErrOrderRejected = errors.New("order rejected")

	// ErrDataUnavailable es transitorio: el símbolo o el ciclo se saltan y se
	// reintenta en el siguiente ciclo.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrSessionConnect es fatal: aborta el arranque del loop.
	ErrSessionConnect = errors.New("session connect failed")
)
