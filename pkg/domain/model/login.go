package model

// QRCodeImage is the response of the QR login image endpoint
type QRCodeImage struct {
	Code  *int    `json:"code"`
	URL   *string `json:"url"`
	Token *string `json:"token"`
}

// QRCodeCheck is the response of the QR login status endpoint
type QRCodeCheck struct {
	Code   *int `json:"code"`
	Status *int `json:"status"`
}

// QRCodeStatus is the login status reported by the status endpoint
type QRCodeStatus int

const (
	QRCodeStatusExpired   QRCodeStatus = -1
	QRCodeStatusWaiting   QRCodeStatus = 0
	QRCodeStatusScanned   QRCodeStatus = 1
	QRCodeStatusConfirmed QRCodeStatus = 2
	QRCodeStatusAccepted  QRCodeStatus = -2
)

// IsPending reports whether the code has not been confirmed yet
func (s QRCodeStatus) IsPending() bool {
	return s == QRCodeStatusWaiting || s == QRCodeStatusScanned
}

// IsAuthenticated reports whether the login has been confirmed on the client
func (s QRCodeStatus) IsAuthenticated() bool {
	return s == QRCodeStatusConfirmed || s == QRCodeStatusAccepted
}

// Session holds the tokens of a login attempt. Cookies live in the transport.
type Session struct {
	CSRFToken string `masq:"secret"`
	QRToken   string `masq:"secret"`
}
