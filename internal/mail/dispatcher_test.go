// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package mail_test

import (
	"context"
	"errors"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/samber/oops"

	"github.com/latchkey/latchkey/internal/account"
	"github.com/latchkey/latchkey/internal/mail"
)

var _ = Describe("Dispatcher", func() {
	var (
		ctx    context.Context
		sender *captureSender
		disp   *mail.Dispatcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		sender = &captureSender{}
		var err error
		disp, err = mail.NewDispatcher(sender, mail.Settings{
			From:    "no-reply@latchkey.test",
			BaseURL: "https://app.latchkey.test/account/",
		})
		Expect(err).NotTo(HaveOccurred())
	})

	linkIn := func(body string) *url.URL {
		for _, line := range strings.Split(body, "\n") {
			if u, err := url.Parse(line); err == nil && u.Scheme == "https" {
				return u
			}
		}
		Fail("no link in body:\n" + body)
		return nil
	}

	DescribeTable("token links",
		func(send func(*mail.Dispatcher) error, kind, path, expires string) {
			Expect(send(disp)).To(Succeed())

			msg := sender.last()
			Expect(msg.Kind).To(Equal(kind))
			Expect(msg.To).To(Equal("a@x.com"))
			Expect(msg.From).To(Equal("no-reply@latchkey.test"))
			Expect(msg.Subject).To(ContainSubstring("Latchkey"))
			Expect(msg.Body).To(ContainSubstring(expires))

			link := linkIn(msg.Body)
			Expect(link.Host).To(Equal("app.latchkey.test"))
			Expect(link.Path).To(Equal("/account" + path))
			Expect(link.Query().Get("token")).To(Equal("tok+en/=="))
		},
		Entry("verification", func(d *mail.Dispatcher) error {
			return d.SendVerification(ctx, "a@x.com", "tok+en/==")
		}, account.MailVerification, mail.VerifyPath, "72 hours"),
		Entry("password reset", func(d *mail.Dispatcher) error {
			return d.SendPasswordReset(ctx, "a@x.com", "tok+en/==")
		}, account.MailPasswordReset, mail.ResetPath, "1 hour"),
		Entry("deletion confirmation", func(d *mail.Dispatcher) error {
			return d.SendDeletionConfirmation(ctx, "a@x.com", "tok+en/==")
		}, account.MailDeletionConfirmation, mail.ConfirmDeletePath, "24 hours"),
	)

	It("escapes tokens in the query string", func() {
		Expect(disp.SendVerification(ctx, "a@x.com", "a b+c")).To(Succeed())
		body := sender.last().Body
		Expect(body).To(ContainSubstring("token=a+b%2Bc"))
	})

	It("sends the deletion notice without a link", func() {
		Expect(disp.SendDeletionCompletedNotice(ctx, "a@x.com")).To(Succeed())
		msg := sender.last()
		Expect(msg.Kind).To(Equal(account.MailDeletionCompleted))
		Expect(msg.Body).To(ContainSubstring("permanently deleted"))
		Expect(msg.Body).NotTo(ContainSubstring("https://"))
	})

	It("wraps sender failures", func() {
		sender.err = errors.New("relay down")
		err := disp.SendPasswordReset(ctx, "a@x.com", "tok")
		Expect(err).To(MatchError(ContainSubstring("relay down")))

		oopsErr, ok := oops.AsOops(err)
		Expect(ok).To(BeTrue())
		Expect(oopsErr.Code()).To(Equal("MAIL_SEND_FAILED"))
	})

	It("uses a configured product name", func() {
		d, err := mail.NewDispatcher(sender, mail.Settings{
			From:    "no-reply@x.test",
			BaseURL: "https://x.test",
			Product: "Acme",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(d.SendVerification(ctx, "a@x.com", "t")).To(Succeed())
		Expect(sender.last().Subject).To(Equal("Verify your Acme email address"))
		Expect(linkIn(sender.last().Body).Path).To(Equal(mail.VerifyPath))
	})

	DescribeTable("rejects invalid settings",
		func(s mail.Settings, snd mail.Sender) {
			_, err := mail.NewDispatcher(snd, s)
			Expect(err).To(HaveOccurred())
			oopsErr, ok := oops.AsOops(err)
			Expect(ok).To(BeTrue())
			Expect(oopsErr.Code()).To(Equal("MAIL_INVALID_CONFIG"))
		},
		Entry("nil sender", mail.Settings{From: "a@x", BaseURL: "https://x"}, nil),
		Entry("missing from", mail.Settings{BaseURL: "https://x"}, &captureSender{}),
		Entry("relative base url", mail.Settings{From: "a@x", BaseURL: "/verify"}, &captureSender{}),
	)
})
