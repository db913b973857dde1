package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"parc-api/internal/store"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Report drift without writing corrections")
	flag.Parse()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal("Failed to open database connection:", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	st := store.New(db)

	stockFixes, err := st.ReconcileStock(ctx, *dryRun)
	if err != nil {
		log.Fatal("Stock reconciliation failed:", err)
	}
	for _, c := range stockFixes {
		fmt.Printf("stock_item %d (%s): loaned %d -> %d\n", c.StockItemID, c.Name, c.Stored, c.Computed)
	}

	assetFixes, err := st.ReconcileAssetStatus(ctx, *dryRun)
	if err != nil {
		log.Fatal("Asset status reconciliation failed:", err)
	}
	for _, c := range assetFixes {
		fmt.Printf("asset_item %d (%s): PRETE -> EN_STOCK\n", c.AssetItemID, c.AssetTag)
	}

	verb := "corrected"
	if *dryRun {
		verb = "found"
	}
	log.Printf("Reconciliation done: %s %d stock counter(s), %d asset status(es)",
		verb, len(stockFixes), len(assetFixes))
}
