package usecase

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the site root of the comics platform
const DefaultBaseURL = "https://manhua.163.com"

// endpoints builds the URLs of the platform relative to a base URL
type endpoints struct {
	base string
	now  func() time.Time
}

func newEndpoints(base string) endpoints {
	if base == "" {
		base = DefaultBaseURL
	}
	return endpoints{
		base: strings.TrimSuffix(base, "/"),
		now:  time.Now,
	}
}

func (e endpoints) stamp() string {
	return fmt.Sprintf("%d", e.now().UnixMilli())
}

func (e endpoints) landing() string {
	return e.base
}

func (e endpoints) qrCodeImage(csrfToken string) string {
	q := url.Values{}
	q.Set("csrfToken", csrfToken)
	q.Set("_", e.stamp())
	return e.base + "/login/qrCodeLoginImage.json?" + q.Encode()
}

// qrCodePicture resolves the relative picture path returned by qrCodeImage
func (e endpoints) qrCodePicture(path string) string {
	return e.base + path + "&utm_source=QRcode_login&utm_medium=web"
}

func (e endpoints) qrCodeCheck(qrToken, csrfToken string) string {
	q := url.Values{}
	q.Set("token", qrToken)
	q.Set("status", "0")
	q.Set("csrfToken", csrfToken)
	q.Set("_", e.stamp())
	return e.base + "/login/qrCodeCheck.json?" + q.Encode()
}

func (e endpoints) source(bookID string) string {
	return e.base + "/source/" + url.PathEscape(bookID)
}

func (e endpoints) catalog(bookID string) string {
	return e.base + "/book/catalog/" + url.PathEscape(bookID) + ".json?_c=" + e.stamp()
}

func (e endpoints) reader(bookID, sectionID string) string {
	return e.base + "/reader/" + url.PathEscape(bookID) + "/" + url.PathEscape(sectionID)
}
