package bridge

// DTOs raw del gateway. Solo se usan dentro de este paquete.
// La conversión a domain se hace en mapping.go.

type sessionRequest struct {
	Client string `json:"client"`
}

type sessionResponse struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
}

type accountResponse struct {
	Login    int64   `json:"login"`
	Currency string  `json:"currency"`
	Equity   float64 `json:"equity"`
	Balance  float64 `json:"balance"`
}

type positionRaw struct {
	Ticket       int64   `json:"ticket"`
	Symbol       string  `json:"symbol"`
	Type         int     `json:"type"` // 0 = buy, 1 = sell
	Volume       float64 `json:"volume"`
	PriceOpen    float64 `json:"price_open"`
	PriceCurrent float64 `json:"price_current"`
	SL           float64 `json:"sl"`
	TP           float64 `json:"tp"`
	Time         int64   `json:"time"` // unix segundos
}

type tickResponse struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Time   int64   `json:"time"`
}

type symbolInfoResponse struct {
	Symbol     string  `json:"symbol"`
	Point      float64 `json:"point"`
	VolumeMin  float64 `json:"volume_min"`
	VolumeStep float64 `json:"volume_step"`
}

type rateRaw struct {
	Time       int64   `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	TickVolume float64 `json:"tick_volume"`
}

type orderRequest struct {
	Symbol    string  `json:"symbol"`
	Type      int     `json:"type"`
	Volume    float64 `json:"volume"`
	Price     float64 `json:"price,omitempty"`
	Deviation int     `json:"deviation"`
	Comment   string  `json:"comment,omitempty"`
}

type modifyRequest struct {
	SL float64 `json:"sl"`
}

type closeRequest struct {
	Symbol string  `json:"symbol"`
	Volume float64 `json:"volume"`
	Type   int     `json:"type"`
}

type orderResponse struct {
	Retcode int     `json:"retcode"`
	Order   int64   `json:"order"`
	Deal    int64   `json:"deal"`
	Price   float64 `json:"price"`
	Profit  float64 `json:"profit"`
	Comment string  `json:"comment"`
}
