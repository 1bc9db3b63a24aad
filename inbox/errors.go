package inbox

import (
	"errors"
	"net"
	"strconv"

	"github.com/hatchlab/hatchdesk/client"
	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg"
	"github.com/hatchlab/hatchdesk/pkg/i18n"
)

// codeMessages maps API error codes to catalog keys.
var codeMessages = map[string]string{
	pkg.CodeNotFound:    "errors.notFound",
	pkg.CodeForbidden:   "errors.forbidden",
	pkg.CodeBadRequest:  "errors.badRequest",
	pkg.CodeConflict:    "errors.conflict",
	pkg.CodeRateLimited: "errors.rateLimited",
	pkg.CodeCSRF:        "errors.csrf",
}

// ErrorMessage returns the inline message a view shows for err, in the
// localizer's language. It is "" for nil errors and cancellations, which
// are not failures the user needs to see.
func ErrorMessage(l *i18n.Localizer, err error) string {
	switch {
	case errors.Is(err, ErrNoParticipants):
		return l.T("conversations.noParticipants")
	case errors.Is(err, ErrEmptyMessage):
		return l.T("composer.empty")
	case errors.Is(err, ErrMessageTooLong):
		return l.TWithParams("composer.tooLong", map[string]string{
			"max": strconv.Itoa(models.MaxMessageLength),
		})
	}

	switch client.Classify(err) {
	case client.KindNone, client.KindCanceled:
		return ""
	case client.KindAuth:
		return l.T("errors.session")
	case client.KindDomain:
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			if key, ok := codeMessages[apiErr.Code]; ok {
				return l.T(key)
			}
		}
		return l.T("errors.generic")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return l.T("errors.network")
	}
	return l.T("errors.generic")
}
