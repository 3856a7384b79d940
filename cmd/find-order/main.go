package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/config"
	"github.com/barswebadmin/leagueops/internal/domain"
	"github.com/barswebadmin/leagueops/internal/refund"
	"github.com/barswebadmin/leagueops/internal/service"
)

func main() {
	kindFlag := flag.String("kind", "refund", "refund or credit")
	submittedFlag := flag.String("submitted", "", "when the request was submitted (YYYY-MM-DD or RFC3339); defaults to now")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: go run cmd/find-order/main.go [--kind refund|credit] [--submitted 2024-09-15] <order number>")
		fmt.Println("Example: go run cmd/find-order/main.go --kind credit \"#42234\"")
		os.Exit(1)
	}
	orderRef := flag.Arg(0)

	kind, ok := domain.ParseRefundKind(*kindFlag)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: --kind must be refund or credit\n")
		os.Exit(1)
	}

	// Load shared .env from repo root (works when run from cmd/find-order or the root)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../../.env")

	cfg := config.ShopifyConfig{
		ShopDomain:  strings.TrimSpace(os.Getenv("SHOPIFY_SHOP_DOMAIN")),
		AccessToken: strings.TrimSpace(os.Getenv("SHOPIFY_ACCESS_TOKEN")),
		APIVersion:  strings.TrimSpace(os.Getenv("SHOPIFY_API_VERSION")),
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2025-01"
	}
	if cfg.ShopDomain == "" || cfg.AccessToken == "" {
		fmt.Fprintf(os.Stderr, "Missing env vars. Need SHOPIFY_SHOP_DOMAIN and SHOPIFY_ACCESS_TOKEN\n")
		os.Exit(1)
	}
	cfg.Timezone = strings.TrimSpace(os.Getenv("LEAGUE_TIMEZONE"))
	if cfg.Timezone == "" {
		cfg.Timezone = "America/New_York"
	}

	submittedAt := time.Now().UTC()
	if *submittedFlag != "" {
		t, ok := service.ParseLeagueDate(*submittedFlag, cfg.Location())
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: could not parse --submitted %q\n", *submittedFlag)
			os.Exit(1)
		}
		submittedAt = t
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	shopifySvc := service.NewShopifyService(cfg, 3, logger)

	fmt.Printf("🔍 Looking up order %s\n\n", domain.NormalizeOrderReference(orderRef))

	snap, err := shopifySvc.FetchOrder(context.Background(), orderRef)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Order %s (%s)\n", snap.Name, snap.ID)
	fmt.Printf("   Created:   %s\n", snap.CreatedAt.Format(time.RFC1123))
	if snap.CancelledAt != nil {
		fmt.Printf("   Cancelled: %s\n", snap.CancelledAt.Format(time.RFC1123))
	}
	fmt.Printf("   Total:     $%.2f %s\n", snap.TotalPaid, snap.CurrencyCode)
	if snap.TotalRefunded > 0 {
		fmt.Printf("   Refunded:  $%.2f\n", snap.TotalRefunded)
	}
	fmt.Printf("   Customer:  %s %s <%s>\n", snap.Customer.FirstName, snap.Customer.LastName, snap.Customer.Email)
	fmt.Printf("   Product:   %s\n", snap.Product.Title)

	for _, r := range snap.Refunds {
		fmt.Printf("   Refund:    $%.2f on %s\n", r.Amount, r.CreatedAt.Format("2006-01-02"))
	}

	if len(snap.Product.Variants) > 0 {
		fmt.Printf("\n📦 Inventory\n")
		for _, v := range snap.Product.Variants {
			fmt.Printf("   %-30s %d\n", v.Title, v.Quantity)
		}
	}

	order := refund.SummarizeOrder(snap)
	fmt.Printf("\n📅 Season\n")
	if order.SeasonStart == nil {
		fmt.Printf("   Season start date not set on the product\n")
	} else {
		fmt.Printf("   Starts:    %s\n", order.SeasonStart.Format("Mon Jan 2, 2006"))
		for _, d := range order.OffDates {
			fmt.Printf("   Off:       %s\n", d.Format("Mon Jan 2, 2006"))
		}
		for i, b := range refund.Boundaries(*order.SeasonStart, order.OffDates) {
			fmt.Printf("   Tier %d from %s\n", i+1, b.Format("Mon Jan 2, 2006"))
		}
	}

	req := domain.RefundRequest{Kind: kind, SubmittedAt: submittedAt}
	est := refund.EstimateFor(req, order)
	fmt.Printf("\n💰 Estimated %s if submitted %s: $%.2f (%d%%)\n", kind.Noun(), submittedAt.Format("2006-01-02 15:04"), est.Amount, est.Percent)
	fmt.Printf("   %s\n", est.Description)
}
