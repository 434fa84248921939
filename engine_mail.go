package authcore

import (
	"fmt"
	"html"
	"time"
)

// mailCodeMessage renders the verification mail carrying a one-time code.
// The body is intentionally plain HTML: downstream mailers wrap it in the
// deployment's branded template.
func mailCodeMessage(user *LoginAccount, code string, ttl time.Duration) MailMessage {
	name := html.EscapeString(displayName(user))
	minutes := int(ttl.Minutes())

	body := fmt.Sprintf(
		"<p>Hello %s,</p>"+
			"<p>Your verification code is:</p>"+
			"<p style=\"font-size:1.6em;letter-spacing:0.2em\"><strong>%s</strong></p>"+
			"<p>The code expires in %d minutes. If you did not request it, you can ignore this message.</p>",
		name, code, minutes,
	)

	return MailMessage{
		To:       user.Email,
		Subject:  "Your verification code",
		HTMLBody: body,
	}
}
