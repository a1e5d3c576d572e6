package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	UnknownDate   = "未知日期"
	UnknownSeller = "未知开票方"
	UnknownAmount = "未知金额"
	UnknownNo     = "未知发票号"

	maxSellerRunes = 20
)

var filenameReplacer = strings.NewReplacer(
	":", "_", "*", "_", "?", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
)

// SanitizeFilename replaces characters that are invalid in Windows file names.
func SanitizeFilename(name string) string {
	return filenameReplacer.Replace(name)
}

// RenamedFilename builds "[date-seller-amount-no].pdf" from the invoice fields.
func RenamedFilename(date, seller, amount, invoiceNo string) string {
	if date == "" {
		date = UnknownDate
	}
	if seller == "" {
		seller = UnknownSeller
	}
	if amount == "" {
		amount = UnknownAmount
	}
	if invoiceNo == "" {
		invoiceNo = UnknownNo
	}

	date = strings.ReplaceAll(strings.ReplaceAll(date, "/", "-"), " ", "")
	seller = strings.NewReplacer("/", "_", `\`, "_").Replace(seller)
	if r := []rune(seller); len(r) > maxSellerRunes {
		seller = string(r[:maxSellerRunes])
	}

	return SanitizeFilename(fmt.Sprintf("[%s-%s-%s-%s].pdf", date, seller, amount, invoiceNo))
}

// Filename returns the renamed filename for the invoice's current fields.
func (i *Invoice) Filename() string {
	return RenamedFilename(i.InvoiceDate, i.Seller, i.Amount, i.InvoiceNo)
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`),
	regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`),
	regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`),
}

// NormalizeDate rewrites the date formats models return into YYYY-MM-DD.
// Unrecognised strings come back unchanged.
func NormalizeDate(s string) string {
	if s == "" {
		return ""
	}
	for _, re := range datePatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("%s-%02d-%02d", m[1], month, day)
	}
	return s
}
