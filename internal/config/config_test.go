package config_test

import (
	"context"
	"testing"

	"github.com/okian/athletegraph/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)

		convey.Convey("Then it should validate", func() {
			convey.So(cfg.Validate(ctx), convey.ShouldBeNil)
			convey.So(cfg.APIKeys, convey.ShouldBeEmpty)
		})

		convey.Convey("When the store backend is unknown", func() {
			cfg.StoreBackend = "sqlite"

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(ctx), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When write_workers is zero", func() {
			cfg.WriteWorkers = 0

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(ctx), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When batch_max_items is zero", func() {
			cfg.BatchMaxItems = 0

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(ctx), convey.ShouldNotBeNil)
			})
		})
	})
}

func TestNeo4jConfig(t *testing.T) {
	convey.Convey("Given neo4j settings", t, func() {
		convey.Convey("Password wins over the legacy spelling", func() {
			n := config.Neo4jConfig{URI: "bolt://x", User: "neo4j", Password: "new", Pass: "old"}
			convey.So(n.Secret(), convey.ShouldEqual, "new")
			convey.So(n.Missing(), convey.ShouldBeEmpty)
		})

		convey.Convey("Blank values count as missing", func() {
			n := config.Neo4jConfig{URI: "  ", User: "neo4j"}
			convey.So(n.Missing(), convey.ShouldResemble, []string{"NEO4J_URI", "NEO4J_PASSWORD"})
		})
	})
}
