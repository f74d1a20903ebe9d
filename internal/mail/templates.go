// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package mail

import (
	"strings"
	"text/template"

	"github.com/samber/oops"

	"github.com/latchkey/latchkey/internal/account"
)

// templateData is what every template may reference.
type templateData struct {
	Product string
	Email   string
	Link    string
	Expires string
}

type mailTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]mailTemplate{
	account.MailVerification: {
		subject: "Verify your {{.Product}} email address",
		body: template.Must(template.New(account.MailVerification).Parse(`Hello,

Someone created a {{.Product}} account for {{.Email}}.
Confirm the address by opening this link within {{.Expires}}:

{{.Link}}

If this was not you, ignore this message and the account stays inactive.
`)),
	},
	account.MailPasswordReset: {
		subject: "Reset your {{.Product}} password",
		body: template.Must(template.New(account.MailPasswordReset).Parse(`Hello,

A password reset was requested for {{.Email}}.
Choose a new password by opening this link within {{.Expires}}:

{{.Link}}

If you did not ask for this, ignore this message. Your password has not changed.
`)),
	},
	account.MailDeletionConfirmation: {
		subject: "Confirm deletion of your {{.Product}} account",
		body: template.Must(template.New(account.MailDeletionConfirmation).Parse(`Hello,

A request was made to permanently delete the {{.Product}} account for {{.Email}}.
Confirm by opening this link within {{.Expires}}:

{{.Link}}

Nothing is deleted unless the link is opened.
`)),
	},
	account.MailDeletionCompleted: {
		subject: "Your {{.Product}} account has been deleted",
		body: template.Must(template.New(account.MailDeletionCompleted).Parse(`Hello,

The {{.Product}} account for {{.Email}} and its data have been permanently deleted.
`)),
	},
}

// render fills the subject and body templates for kind.
func render(kind string, data templateData) (subject, body string, err error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", "", oops.Code("MAIL_UNKNOWN_KIND").With("kind", kind).Errorf("no template for mail kind %q", kind)
	}

	subjectTmpl, err := template.New(kind + ".subject").Parse(tmpl.subject)
	if err != nil {
		return "", "", oops.Code("MAIL_RENDER_FAILED").With("kind", kind).With("part", "subject").Wrap(err)
	}

	var sb, bb strings.Builder
	if err := subjectTmpl.Execute(&sb, data); err != nil {
		return "", "", oops.Code("MAIL_RENDER_FAILED").With("kind", kind).With("part", "subject").Wrap(err)
	}
	if err := tmpl.body.Execute(&bb, data); err != nil {
		return "", "", oops.Code("MAIL_RENDER_FAILED").With("kind", kind).With("part", "body").Wrap(err)
	}
	return sb.String(), bb.String(), nil
}
