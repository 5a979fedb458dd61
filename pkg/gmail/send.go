package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
)

// SendEmail composes a plain-text RFC 822 message and sends it through the
// provider on behalf of the authenticated user.
func (s *Service) SendEmail(ctx context.Context, accessToken, fromEmail, to, subject, body string) error {
	api, err := s.newAPI(ctx, accessToken)
	if err != nil {
		return err
	}

	raw, err := composeMessage(fromEmail, to, subject, body)
	if err != nil {
		return err
	}

	if err := api.Send(ctx, raw); err != nil {
		return classifyAuthError(err)
	}
	return nil
}

func composeMessage(fromEmail, to, subject, body string) (string, error) {
	toList, err := mail.ParseAddressList(to)
	if err != nil {
		return "", fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	var header mail.Header
	header.SetDate(time.Now())
	header.SetAddressList("From", []*mail.Address{{Address: fromEmail}})
	header.SetAddressList("To", toList)
	header.SetSubject(subject)

	var buf bytes.Buffer
	mw, err := mail.CreateSingleInlineWriter(&buf, header)
	if err != nil {
		return "", fmt.Errorf("unable to compose message: %w", err)
	}
	if _, err := io.WriteString(mw, body); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}
