// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

//go:build integration

package store_test

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pressroom/pressroom/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		migrator  *store.Migrator
		pool      *pgxpool.Pool
	)

	tableExists := func(name string) bool {
		var exists bool
		err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, "public."+name).Scan(&exists)
		Expect(err).NotTo(HaveOccurred())
		return exists
	}

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("pressroom_test"),
			postgres.WithUsername("pressroom"),
			postgres.WithPassword("pressroom"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2)),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		pool, err = store.Connect(ctx, connStr, store.ConnectOptions{})
		Expect(err).NotTo(HaveOccurred())

		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if migrator != nil {
			_ = migrator.Close()
		}
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	It("starts at version zero", func() {
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())
	})

	It("creates every auth table on Up", func() {
		Expect(migrator.Up()).To(Succeed())

		pending, err := migrator.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())

		for _, table := range []string{"identities", "sessions", "login_attempts", "audit_log"} {
			Expect(tableExists(table)).To(BeTrue(), table)
		}
	})

	It("steps back and forward one migration", func() {
		Expect(migrator.Steps(-1)).To(Succeed())
		Expect(tableExists("login_attempts")).To(BeFalse())
		Expect(tableExists("sessions")).To(BeTrue())

		Expect(migrator.Steps(1)).To(Succeed())
		Expect(tableExists("audit_log")).To(BeTrue())
	})

	It("enforces case-insensitive email uniqueness", func() {
		insert := `INSERT INTO identities (id, email, password_hash, first_name, last_name)
			VALUES ($1, $2, 'x', 'A', 'B')`
		_, err := pool.Exec(ctx, insert, "01HZZZZZZZZZZZZZZZZZZZZZZ1", "ada@example.com")
		Expect(err).NotTo(HaveOccurred())
		_, err = pool.Exec(ctx, insert, "01HZZZZZZZZZZZZZZZZZZZZZZ2", "ADA@example.com")
		Expect(err).To(HaveOccurred())
	})

	It("drops everything on Down and reports readiness", func() {
		Expect(migrator.Down()).To(Succeed())
		Expect(tableExists("identities")).To(BeFalse())

		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())

		Expect(store.ReadinessCheck(pool)(ctx)).To(BeTrue())
	})
})
