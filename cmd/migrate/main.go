package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/angelmondragon/foodapp-backend/internal/boot"
	"github.com/angelmondragon/foodapp-backend/internal/catalog"
	"github.com/angelmondragon/foodapp-backend/pkg/db"
	"github.com/angelmondragon/foodapp-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "command: up|down|status|version|create|validate|seed|reset-meals")
	dir := flag.String("dir", "", "migrations directory (defaults to the embedded set; create writes to "+migrate.DefaultDir+")")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate only touch files.
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, *name)
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		if err := migrate.ValidateFS(migrate.Source(*dir)); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	proc := boot.Start("migrate")
	logg := proc.Logger
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": proc.Config.App.Env,
		"cmd": *cmd,
	})

	dbClient, err := db.New(ctx, proc.Config.DB, logg)
	proc.Must("connect database", err)
	defer dbClient.Close()

	switch *cmd {
	case "seed", "reset-meals":
		seeder, err := catalog.NewSeeder(catalog.NewRepository(dbClient.DB()), dbClient, logg)
		proc.Must("build catalog seeder", err)
		run := seeder.Seed
		if *cmd == "reset-meals" {
			run = seeder.ResetMeals
		}
		res, err := run(ctx)
		if err != nil {
			fail("%s failed: %v", *cmd, err)
		}
		fmt.Printf("%s: delivery_types=%d locations=%d meals=%d retired=%d\n", *cmd, res.DeliveryTypes, res.Locations, res.Meals, res.Retired)
		return
	}

	sqlDB, err := dbClient.DB().DB()
	proc.Must("open sql handle", err)
	migrator, err := migrate.New(sqlDB, migrate.Source(*dir))
	proc.Must("build migrator", err)

	switch *cmd {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("applied %d migration(s) %v\n", len(applied), applied)

	case "down":
		rolledBack, err := migrator.Down(ctx)
		if err != nil {
			fail("%v", err)
		}
		fmt.Println("rolled back version", rolledBack)

	case "status":
		rows, err := migrator.Status(ctx)
		if err != nil {
			fail("%v", err)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
		for _, row := range rows {
			state, appliedAt := "pending", "-"
			if row.Applied {
				state, appliedAt = "applied", row.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", row.Version, state, appliedAt, row.Path)
		}
		_ = tw.Flush()

	case "version":
		if *version == "" {
			fail("missing -version for version command")
		}
		if err := migrator.MigrateTo(ctx, *version); err != nil {
			fail("%v", err)
		}
		fmt.Println("schema at version", *version)

	default:
		fail("unknown -cmd value: %s", *cmd)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
