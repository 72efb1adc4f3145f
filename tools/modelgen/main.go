// Command modelgen regenerates gorm structs from a migrated database so the
// hand-written models in internal/adapter/repo/gorm/model can be diffed for
// schema drift.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gen"
	"gorm.io/gorm"
)

// Table names without the namespace prefix, mapped to generated model names.
var territoryTables = []struct{ table, model string }{
	{"tiles", "Tile"},
	{"colonies", "Colony"},
	{"colony_tiles", "ColonyTile"},
	{"capture_events", "CaptureEvent"},
	{"player_credentials", "PlayerCredential"},
}

func main() {
	var dsn, out, namespace string
	flag.StringVar(&dsn, "dsn", os.Getenv("HEXCOLONY_DB_DSN"), "postgres dsn")
	flag.StringVar(&namespace, "namespace", os.Getenv("HEXCOLONY_NAMESPACE"), "store namespace (table prefix)")
	flag.StringVar(&out, "out", "internal/adapter/repo/gorm/genmodel", "output dir for generated models")
	flag.Parse()

	if dsn == "" {
		log.Fatal("missing --dsn or HEXCOLONY_DB_DSN")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	g := gen.NewGenerator(gen.Config{
		OutPath:      out,
		ModelPkgPath: "genmodel",
		Mode:         gen.WithoutContext | gen.WithDefaultQuery,
	})
	g.UseDB(db)
	for _, t := range territoryTables {
		g.GenerateModelAs(prefix(namespace)+t.table, t.model)
	}
	g.Execute()

	fmt.Printf("generated gorm models for namespace %q at %s\n", namespace, out)
}

func prefix(namespace string) string {
	if namespace == "" {
		return ""
	}
	return namespace + "_"
}
