// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/latchkey/latchkey/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		migrator  *store.Migrator
		pool      *pgxpool.Pool
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("latchkey_test"),
			postgres.WithUsername("latchkey"),
			postgres.WithPassword("latchkey"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = container.Terminate(ctx) })

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = migrator.Close() })

		pool, err = store.Open(ctx, connStr, store.PoolOptions{ConnectAttempts: 5, ConnectBackoff: 100 * time.Millisecond})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.Close)
	})

	It("starts at version zero", func() {
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())
	})

	It("applies every migration", func() {
		Expect(migrator.Up()).To(Succeed())

		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Version).To(BeNumerically(">", 0))
		Expect(st.Pending).To(BeEmpty())
		Expect(st.Dirty).To(BeFalse())
	})

	It("steps down and back up", func() {
		latest, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())

		Expect(migrator.Steps(-1)).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(latest - 1))

		Expect(migrator.Steps(1)).To(Succeed())
		version, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(latest))
	})

	Describe("users schema", func() {
		insert := func(id, email string) error {
			_, err := pool.Exec(ctx,
				`INSERT INTO users (id, email, password_hash, password_salt) VALUES ($1, $2, $3, $4)`,
				id, email, []byte("h"), []byte("s"))
			return err
		}

		AfterEach(func() {
			_, err := pool.Exec(ctx, `DELETE FROM users`)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects duplicate emails", func() {
			Expect(insert("01A", "a@x.com")).To(Succeed())
			Expect(insert("01B", "a@x.com")).To(MatchError(ContainSubstring("users_email_key")))
		})

		It("rejects emails that are not normalized", func() {
			Expect(insert("01C", "A@X.com")).To(MatchError(ContainSubstring("users_email_normalized")))
		})

		It("starts new rows at version 1", func() {
			Expect(insert("01E", "e@x.com")).To(Succeed())
			var version int64
			Expect(pool.QueryRow(ctx, `SELECT version FROM users WHERE id = '01E'`).Scan(&version)).To(Succeed())
			Expect(version).To(Equal(int64(1)))
		})

		It("rejects a token without an expiry", func() {
			Expect(insert("01D", "d@x.com")).To(Succeed())
			_, err := pool.Exec(ctx, `UPDATE users SET reset_token = 'tok' WHERE id = '01D'`)
			Expect(err).To(MatchError(ContainSubstring("users_reset_token_pair")))
		})
	})

	It("rolls everything back and can be forced", func() {
		Expect(migrator.Down()).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())

		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Force(1)).To(Succeed())
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
		Expect(dirty).To(BeFalse())
	})
})
