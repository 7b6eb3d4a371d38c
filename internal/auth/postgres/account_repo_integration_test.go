// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/phonegate/phonegate/internal/auth"
	"github.com/phonegate/phonegate/internal/auth/postgres"
)

var _ = Describe("AccountRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.AccountRepository
		acct auth.AccountInsert
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewAccountRepository(testPool)
		acct = auth.AccountInsert{
			ID:           ulid.Make().String(),
			Phone:        "+1555" + ulid.Make().String()[20:],
			PasswordHash: "HASH",
			Salt:         "SALT",
			CreatedAt:    time.Now().Unix(),
		}
		DeferCleanup(func() {
			_, _ = testPool.Exec(ctx, `DELETE FROM account WHERE id = $1`, acct.ID)
		})
	})

	It("round-trips an inserted account", func() {
		n, err := repo.Insert(ctx, acct)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		stored, err := repo.GetOne(ctx, auth.AccountQuery{Phone: acct.Phone})
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.ID).To(Equal(acct.ID))
		Expect(stored.LoginErrorCount).To(BeZero())
		Expect(stored.LastLoginAt).To(BeNil())
		Expect(stored.LastErrorAt).To(BeNil())
		Expect(stored.UpdatedAt).To(BeNil())
	})

	It("rejects a duplicate phone as a conflict", func() {
		_, err := repo.Insert(ctx, acct)
		Expect(err).NotTo(HaveOccurred())

		dup := acct
		dup.ID = ulid.Make().String()
		_, err = repo.Insert(ctx, dup)
		Expect(err).To(MatchError(auth.ErrConflict))
	})

	It("applies partial updates", func() {
		_, err := repo.Insert(ctx, acct)
		Expect(err).NotTo(HaveOccurred())

		count := 2
		at := time.Now().Unix()
		n, err := repo.Update(ctx, auth.AccountQuery{ID: acct.ID}, auth.AccountUpdate{LoginErrorCount: &count, LastErrorAt: &at})
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		stored, err := repo.GetOne(ctx, auth.AccountQuery{ID: acct.ID})
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.LoginErrorCount).To(Equal(2))
		Expect(*stored.LastErrorAt).To(Equal(at))
		Expect(stored.LastLoginAt).To(BeNil())
		Expect(stored.UpdatedAt).NotTo(BeNil())
		Expect(stored.PasswordHash).To(Equal("HASH"))
	})

	It("reports a missing account as not found", func() {
		_, err := repo.GetOne(ctx, auth.AccountQuery{ID: ulid.Make().String()})
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("drives the lockout flow end to end", func() {
		tokens, err := auth.NewTokenService("integration-secret", time.Hour)
		Expect(err).NotTo(HaveOccurred())
		svc, err := auth.NewService(repo, auth.NewSaltedHasher(), tokens,
			auth.LockoutPolicy{RetryLimit: 2, RetryInterval: time.Minute})
		Expect(err).NotTo(HaveOccurred())

		res, err := svc.SignUp(ctx, acct.Phone, "pw")
		Expect(err).NotTo(HaveOccurred())
		acct.ID = res.AccountID

		for range 2 {
			_, err = svc.SignIn(ctx, acct.Phone, "bad")
			Expect(err).To(MatchError(auth.ErrInvalidCredentials))
		}
		_, err = svc.SignIn(ctx, acct.Phone, "pw")
		Expect(err).To(MatchError(auth.ErrTooManyAttempts))
	})
})
