package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/kapehan/kapehan-backend/config"
	"github.com/kapehan/kapehan-backend/internal/app/model"
	"github.com/kapehan/kapehan-backend/internal/db"
	"github.com/kapehan/kapehan-backend/pkg/util"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Seeds demo accounts and imports the menu from an XLSX sheet with
// columns: name, category, description, base_price (pesos), stock,
// add-ons ("name:price;name:price").
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <menu_xlsx_path>")
	}
	filePath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	fmt.Printf("Reading menu file: %s\n", filePath)
	products, err := readMenuFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read menu XLSX:", err)
	}
	fmt.Printf("Products to import: %d\n", len(products))

	fmt.Print("Proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	if err := seedUsers(db.GetDB()); err != nil {
		log.Fatal("Failed to seed users:", err)
	}

	imported := 0
	for i := range products {
		if err := db.GetDB().Create(&products[i]).Error; err != nil {
			fmt.Printf("Skipping %s: %v\n", products[i].Name, err)
			continue
		}
		imported++
	}
	fmt.Printf("Done. Imported %d products.\n", imported)
}

func seedUsers(gdb *gorm.DB) error {
	demo := []struct {
		email    string
		name     string
		role     model.UserRole
		password string
	}{
		{"admin@kapehan.ph", "Shop Admin", model.RoleAdmin, "admin-password-1"},
		{"barista@kapehan.ph", "Counter Barista", model.RoleStaff, "staff-password-1"},
		{"maria@example.com", "Maria Santos", model.RoleCustomer, "customer-pass-1"},
	}

	for _, d := range demo {
		var existing model.User
		if err := gdb.Where("email = ?", d.email).First(&existing).Error; err == nil {
			fmt.Printf("User %s already exists, skipping\n", d.email)
			continue
		}

		hash, err := util.HashPassword(d.password)
		if err != nil {
			return err
		}
		user := model.User{
			Email:        d.email,
			PasswordHash: hash,
			Name:         d.name,
			Role:         d.role,
		}
		if err := gdb.Create(&user).Error; err != nil {
			return err
		}
		fmt.Printf("Created %s user %s\n", d.role, d.email)
	}
	return nil
}

func readMenuFromXLSX(filePath string) ([]model.Product, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows found in XLSX file")
	}

	var products []model.Product
	seen := make(map[string]bool)
	skipped := 0

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) < 5 {
			skipped++
			continue
		}

		name := strings.TrimSpace(row[0])
		if name == "" || seen[name] {
			skipped++
			continue
		}
		seen[name] = true

		priceInPesos, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			fmt.Printf("Row %d: invalid base_price %q, skipping\n", i+1, row[3])
			skipped++
			continue
		}
		stock, err := strconv.Atoi(strings.TrimSpace(row[4]))
		if err != nil {
			fmt.Printf("Row %d: invalid stock %q, skipping\n", i+1, row[4])
			skipped++
			continue
		}

		product := model.Product{
			Name:          name,
			Category:      model.CategoryType(strings.ToLower(strings.TrimSpace(row[1]))),
			Description:   strings.TrimSpace(row[2]),
			BasePrice:     int64(priceInPesos * 100),
			StockQuantity: stock,
			Available:     true,
		}
		if len(row) > 5 {
			product.AddOns = parseAddOns(row[5])
		}
		products = append(products, product)
	}

	if skipped > 0 {
		fmt.Printf("Skipped %d rows\n", skipped)
	}
	return products, nil
}

// parseAddOns parses "Extra Shot:25;Oat Milk:30" into add-on rows with
// centavo prices.
func parseAddOns(raw string) []model.ProductAddOn {
	var addOns []model.ProductAddOn
	for _, part := range strings.Split(raw, ";") {
		pieces := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(pieces) != 2 {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(pieces[1]), 64)
		if err != nil {
			continue
		}
		addOns = append(addOns, model.ProductAddOn{
			Name:  strings.TrimSpace(pieces[0]),
			Price: int64(price * 100),
		})
	}
	return addOns
}
