// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package mail_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"net/textproto"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/latchkey/latchkey/internal/account"
	"github.com/latchkey/latchkey/internal/mail"
)

var sample = mail.Message{
	To:      "a@x.com",
	From:    "no-reply@latchkey.test",
	Subject: "Verify your Latchkey email address",
	Body:    "line one\nhttps://app.test/verify-email?token=abc\n",
	Kind:    account.MailVerification,
}

var _ = Describe("SMTPSender", func() {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  []byte
		sendErr error
		sender  *mail.SMTPSender
		now     = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	)

	BeforeEach(func() {
		sendErr = nil
		s, err := mail.NewSMTPSender(mail.SMTPConfig{Host: "smtp.test", Port: 2525, Username: "u", Password: "p"})
		Expect(err).NotTo(HaveOccurred())
		sender = s.WithSendMail(func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
			return sendErr
		}, func() time.Time { return now })
	})

	It("writes headers and a CRLF body", func() {
		Expect(sender.Send(context.Background(), sample)).To(Succeed())
		Expect(gotAddr).To(Equal("smtp.test:2525"))
		Expect(gotFrom).To(Equal(sample.From))
		Expect(gotTo).To(ConsistOf("a@x.com"))

		raw := string(gotMsg)
		Expect(raw).To(ContainSubstring("To: a@x.com\r\n"))
		Expect(raw).To(ContainSubstring("Subject: Verify your Latchkey email address\r\n"))
		Expect(raw).To(ContainSubstring("Date: Thu, 02 Apr 2026 10:00:00 +0000\r\n"))
		Expect(raw).To(MatchRegexp(`Message-ID: <[0-9A-Z]{26}@latchkey\.test>`))
		Expect(raw).To(HaveSuffix("line one\r\nhttps://app.test/verify-email?token=abc\r\n"))
	})

	It("does not dial with a canceled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		gotAddr = ""
		Expect(sender.Send(ctx, sample)).To(MatchError(context.Canceled))
		Expect(gotAddr).To(BeEmpty())
	})

	It("marks 5xx replies permanent", func() {
		sendErr = &textproto.Error{Code: 550, Msg: "mailbox unavailable"}
		err := sender.Send(context.Background(), sample)
		Expect(errors.Is(err, mail.ErrPermanent)).To(BeTrue())
	})

	It("leaves 4xx replies retryable", func() {
		sendErr = &textproto.Error{Code: 451, Msg: "try later"}
		err := sender.Send(context.Background(), sample)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, mail.ErrPermanent)).To(BeFalse())
	})

	It("requires a host", func() {
		_, err := mail.NewSMTPSender(mail.SMTPConfig{})
		Expect(err).To(MatchError(ContainSubstring("smtp host is required")))
	})
})

var _ = Describe("LogSender", func() {
	It("logs the envelope and keeps the body at debug", func() {
		var buf bytes.Buffer
		s := mail.NewLogSender(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
		Expect(s.Send(context.Background(), sample)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("mail delivered to log"))
		Expect(buf.String()).To(ContainSubstring("to=a@x.com"))
		Expect(buf.String()).NotTo(ContainSubstring("token=abc"))
	})
})

var _ = Describe("RetrySender", func() {
	var (
		inner *captureSender
		quiet *slog.Logger
	)

	BeforeEach(func() {
		inner = &captureSender{}
		quiet = slog.New(slog.NewTextHandler(GinkgoWriter, nil))
	})

	newRetry := func(attempts uint64) *mail.RetrySender {
		return mail.NewRetrySender(inner,
			mail.WithAttempts(attempts),
			mail.WithBackoff(time.Millisecond, 5*time.Millisecond),
			mail.WithRetryLogger(quiet),
		)
	}

	It("delivers on the first attempt", func() {
		Expect(newRetry(3).Send(context.Background(), sample)).To(Succeed())
		Expect(inner.calls).To(Equal(1))
	})

	It("stops after the attempt cap", func() {
		inner.err = errors.New("connection reset")
		err := newRetry(3).Send(context.Background(), sample)
		Expect(err).To(MatchError(ContainSubstring("connection reset")))
		Expect(inner.calls).To(Equal(3))
	})

	It("recovers when a later attempt succeeds", func() {
		flaky := &flakySender{failures: 2}
		r := mail.NewRetrySender(flaky, mail.WithAttempts(3), mail.WithBackoff(time.Millisecond, time.Millisecond), mail.WithRetryLogger(quiet))
		Expect(r.Send(context.Background(), sample)).To(Succeed())
		Expect(flaky.calls).To(Equal(3))
	})

	It("does not retry permanent failures", func() {
		inner.err = errors.Join(mail.ErrPermanent, errors.New("550 no such user"))
		Expect(newRetry(5).Send(context.Background(), sample)).To(HaveOccurred())
		Expect(inner.calls).To(Equal(1))
	})

	It("gives up when the context ends", func() {
		inner.err = errors.New("connection reset")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(newRetry(5).Send(ctx, sample)).To(HaveOccurred())
		Expect(inner.calls).To(BeNumerically("<=", 1))
	})
})

type flakySender struct {
	failures int
	calls    int
}

func (f *flakySender) Send(context.Context, mail.Message) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("temporary")
	}
	return nil
}
