package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/loanbook-backend/internal/app"
	"github.com/yungbote/loanbook-backend/internal/ledger"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var loans idList
	var driftOnly bool
	flag.Var(&loans, "loan", "loan id to repair (repeatable; default: all loans)")
	flag.BoolVar(&driftOnly, "drift-only", false, "print only loans whose aggregates had drifted")
	flag.Parse()

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx := context.Background()

	var reports []*ledger.Report
	if len(loans) > 0 {
		for _, raw := range loans {
			id, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				fmt.Printf("invalid loan id %q: %v\n", raw, err)
				os.Exit(1)
			}
			report, err := application.Repairer.Repair(ctx, id)
			if err != nil {
				fmt.Printf("repair loan %s: %v\n", id, err)
				os.Exit(1)
			}
			reports = append(reports, report)
		}
	} else {
		reports, err = application.Repairer.RepairAll(ctx)
		if err != nil {
			fmt.Printf("repair all: %v\n", err)
			os.Exit(1)
		}
	}

	drifted := 0
	for _, report := range reports {
		if report.HadDrift {
			drifted++
		}
		if driftOnly && !report.HadDrift {
			continue
		}
		fmt.Printf("loan %s drift=%t total %s -> %s\n",
			report.LoanID,
			report.HadDrift,
			report.OldValues.TotalAmountReceived,
			report.NewValues.TotalAmountReceived)
	}
	fmt.Printf("checked %d loans, %d drifted\n", len(reports), drifted)
}
