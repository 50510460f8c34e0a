// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/customfields/internal/customfield"
	"github.com/holomush/customfields/internal/customfield/postgres"
	"github.com/holomush/customfields/internal/store"
)

func TestPostgresIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Custom Field Postgres Integration Suite")
}

var (
	pool      *pgxpool.Pool
	container *tcpostgres.PostgresContainer
)

var _ = BeforeSuite(func() {
	ctx := context.Background()

	var err error
	container, err = tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("customfields_test"),
		tcpostgres.WithUsername("customfields"),
		tcpostgres.WithPassword("customfields"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	_ = migrator.Close()

	pool, err = store.Open(ctx, store.PoolConfig{URL: connStr, Attempts: 3, Timeout: 10 * time.Second})
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if pool != nil {
		pool.Close()
	}
	if container != nil {
		_ = container.Terminate(context.Background())
	}
})

type stack struct {
	registry *customfield.Registry
	values   *customfield.ValueStore
	facade   *customfield.Facade
}

func newStack(scopes customfield.ScopeResolver) stack {
	tabs := postgres.NewTabRepository(pool)
	defs := postgres.NewDefinitionRepository(pool)
	vals := postgres.NewValueRepository(pool)
	tx := postgres.NewTransactor(pool)

	reg := customfield.NewRegistry(customfield.RegistryConfig{Tabs: tabs, Definitions: defs, Values: vals})
	vs := customfield.NewValueStore(customfield.ValueStoreConfig{Definitions: reg, Values: vals, Transactor: tx})
	return stack{
		registry: reg,
		values:   vs,
		facade: customfield.NewFacade(customfield.FacadeConfig{
			Registry: reg, Values: vs, ValueRepo: vals, Transactor: tx, Scopes: scopes,
		}),
	}
}

func truncate(ctx context.Context) {
	_, err := pool.Exec(ctx, "TRUNCATE field_values, field_definitions, field_tabs")
	Expect(err).NotTo(HaveOccurred())
}

var _ = Describe("Custom fields on PostgreSQL", func() {
	var (
		ctx   context.Context
		s     stack
		scope customfield.Scope
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncate(ctx)
		s = newStack(nil)
		scope = customfield.Scope{EntityType: customfield.EntityTypeGroup, EntityID: "g1"}
	})

	Describe("Registry", func() {
		It("persists tabs and definitions with options", func() {
			tab := &customfield.FieldTab{Scope: scope, TabName: "Main", DisplayOrder: 1}
			Expect(s.registry.CreateTab(ctx, tab)).To(Succeed())

			def, err := s.registry.CreateDefinition(ctx, customfield.DefinitionInput{
				Scope:        scope,
				FieldTabID:   &tab.ID,
				FieldName:    "tier",
				FieldType:    customfield.FieldTypeSingleChoice,
				FieldOptions: customfield.FieldOptions{{Value: "gold", Label: "Gold"}, {Value: "silver"}},
				IsRequired:   true,
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := s.registry.GetDefinition(ctx, def.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.FieldOptions).To(Equal(def.FieldOptions))
			Expect(got.FieldTabID).NotTo(BeNil())
			Expect(*got.FieldTabID).To(Equal(tab.ID))
			Expect(got.IsRequired).To(BeTrue())

			found, err := s.registry.FindDefinition(ctx, scope, "tier")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(def.ID))
		})

		It("rejects a duplicate active name through the partial unique index", func() {
			in := customfield.DefinitionInput{Scope: scope, FieldName: "city", FieldType: customfield.FieldTypeText}
			_, err := s.registry.CreateDefinition(ctx, in)
			Expect(err).NotTo(HaveOccurred())

			_, err = s.registry.CreateDefinition(ctx, in)
			Expect(err).To(MatchError(customfield.ErrConflict))
		})

		It("frees the name after a soft delete", func() {
			in := customfield.DefinitionInput{Scope: scope, FieldName: "city", FieldType: customfield.FieldTypeText}
			def, err := s.registry.CreateDefinition(ctx, in)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.registry.SoftDeleteDefinition(ctx, def.ID)).To(Succeed())

			_, err = s.registry.CreateDefinition(ctx, in)
			Expect(err).NotTo(HaveOccurred())
		})

		It("locks the type once a value exists", func() {
			def, err := s.registry.CreateDefinition(ctx, customfield.DefinitionInput{Scope: scope, FieldName: "age", FieldType: customfield.FieldTypeText})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.values.SetValue(ctx, def.ID, scope, "41")).To(Succeed())

			number := customfield.FieldTypeNumber
			_, err = s.registry.UpdateDefinition(ctx, def.ID, customfield.DefinitionPatch{FieldType: &number})
			Expect(err).To(MatchError(customfield.ErrConflict))
		})
	})

	Describe("Facade", func() {
		BeforeEach(func() {
			for _, in := range []customfield.DefinitionInput{
				{Scope: scope, FieldName: "name", FieldType: customfield.FieldTypeText, IsRequired: true},
				{Scope: scope, FieldName: "members", FieldType: customfield.FieldTypeNumber},
				{Scope: scope, FieldName: "tags", FieldType: customfield.FieldTypeMultiChoice, FieldOptions: customfield.FieldOptions{{Value: "a"}, {Value: "b"}}},
			} {
				_, err := s.registry.CreateDefinition(ctx, in)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("round trips attributes", func() {
			Expect(s.facade.SaveEntityAttributes(ctx, scope.EntityType, scope.EntityID, map[string]string{
				"name": "Rovers", "members": "12.0", "tags": `["b","a"]`,
			})).To(Succeed())

			attrs, err := s.facade.GetEntityAttributes(ctx, scope.EntityType, scope.EntityID)
			Expect(err).NotTo(HaveOccurred())
			Expect(attrs).To(HaveLen(3))
			Expect(attrs["name"]).To(Equal("Rovers"))
			Expect(attrs["members"].(decimal.Decimal).Equal(decimal.NewFromInt(12))).To(BeTrue())
			Expect(attrs["tags"]).To(Equal([]string{"a", "b"}))
		})

		It("writes nothing when any value is invalid", func() {
			Expect(s.facade.SaveEntityAttributes(ctx, scope.EntityType, scope.EntityID, map[string]string{"name": "Rovers"})).To(Succeed())

			err := s.facade.SaveEntityAttributes(ctx, scope.EntityType, scope.EntityID, map[string]string{
				"name": "Renamed", "members": "lots",
			})
			Expect(err).To(MatchError(customfield.ErrValidation))

			stored, err := s.values.GetValues(ctx, scope)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(Equal(map[string]string{"name": "Rovers"}))
		})

		It("purges an instance without touching others", func() {
			other := customfield.Scope{EntityType: scope.EntityType, EntityID: "g2"}
			s = newStack(customfield.FixedScopes{customfield.EntityTypeGroup: "g1"})
			Expect(s.facade.SaveEntityAttributes(ctx, scope.EntityType, "g1", map[string]string{"name": "One"})).To(Succeed())
			Expect(s.facade.SaveEntityAttributes(ctx, scope.EntityType, "g2", map[string]string{"name": "Two"})).To(Succeed())

			Expect(s.facade.OnEntityDeleted(ctx, scope.EntityType, "g1")).To(Succeed())

			gone, err := s.values.GetValues(ctx, scope)
			Expect(err).NotTo(HaveOccurred())
			Expect(gone).To(BeEmpty())
			kept, err := s.values.GetValues(ctx, other)
			Expect(err).NotTo(HaveOccurred())
			Expect(kept).To(HaveKeyWithValue("name", "Two"))
		})

		It("serialises concurrent saves of one instance", func() {
			const writers = 8
			var wg sync.WaitGroup
			errs := make([]error, writers)
			for i := range writers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					v := fmt.Sprint(i)
					errs[i] = s.facade.SaveEntityAttributes(ctx, scope.EntityType, scope.EntityID, map[string]string{
						"name": "writer " + v, "members": v,
					})
				}()
			}
			wg.Wait()
			for _, err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}

			stored, err := s.values.GetValues(ctx, scope)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored["name"]).To(Equal("writer " + stored["members"]))
		})

		It("cascades value removal when a definition row is deleted", func() {
			Expect(s.facade.SaveEntityAttributes(ctx, scope.EntityType, scope.EntityID, map[string]string{"name": "Rovers"})).To(Succeed())
			_, err := pool.Exec(ctx, "DELETE FROM field_definitions")
			Expect(err).NotTo(HaveOccurred())

			stored, err := s.values.GetValues(ctx, scope)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(BeEmpty())
		})
	})
})
