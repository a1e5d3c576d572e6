// Command dbtool runs maintenance tasks against the invoice database.
//
//	dbtool migrate-dates   normalise stored invoice dates and rename files to match
//	dbtool reset -yes      drop and recreate every table
package main

import (
	"flag"
	"fmt"
	"os"

	invoiceRepo "invoice-backend/internal/invoice/repository"
	invoiceUsecase "invoice-backend/internal/invoice/usecase"
	"invoice-backend/pkg/config"
	"invoice-backend/pkg/database"
	"invoice-backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <migrate-dates|reset -yes>\n", os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg := config.Load()
	log := logger.NewLogger(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	switch os.Args[1] {
	case "migrate-dates":
		if err := migrateDates(db, cfg); err != nil {
			log.Fatal("migrate-dates failed", zap.Error(err))
		}
	case "reset":
		fs := flag.NewFlagSet("reset", flag.ExitOnError)
		yes := fs.Bool("yes", false, "confirm dropping all data")
		_ = fs.Parse(os.Args[2:])
		if !*yes {
			fmt.Fprintln(os.Stderr, "reset drops every table; rerun with -yes to confirm")
			os.Exit(1)
		}
		if err := database.Reset(db, database.Models()...); err != nil {
			log.Fatal("reset failed", zap.Error(err))
		}
		log.Info("database reset")
	default:
		usage()
	}
}

func migrateDates(db *gorm.DB, cfg *config.Config) error {
	if err := database.Migrate(db); err != nil {
		return err
	}
	uc := invoiceUsecase.NewInvoiceUsecase(invoiceRepo.NewInvoiceRepository(db), invoiceRepo.NewHistoryRepository(db), cfg.StaticDir)
	res, err := uc.MigrateDates()
	if err != nil {
		return err
	}
	fmt.Printf("invoices: %d, dates updated: %d, files renamed: %d, errors: %d\n",
		res.Total, res.DatesUpdated, res.FilenamesUpdated, res.Errors)
	return nil
}
