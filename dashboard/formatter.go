package dashboard

import (
	"fmt"
	"strings"
)

// SummaryToMap converts a Summary to the JSON-friendly structure served to
// clients and fed to insight generation.
func SummaryToMap(s Summary) map[string]interface{} {
	products := make([]map[string]interface{}, 0, len(s.TopProducts))
	for _, p := range s.TopProducts {
		entry := map[string]interface{}{
			"asin":            p.ASIN,
			"title":           p.Title,
			"revenue":         p.Revenue,
			"units":           p.Units,
			"sessions":        p.Sessions,
			"conversion_rate": p.ConversionRate,
			"refunds":         p.Refunds,
		}
		if p.BuyBoxPercentage != nil {
			entry["buy_box_percentage"] = *p.BuyBoxPercentage
		} else {
			entry["buy_box_percentage"] = nil
		}
		products = append(products, entry)
	}

	return map[string]interface{}{
		"source": s.SourceName,
		"window": map[string]interface{}{
			"start": s.Start.Format(DateLayout),
			"end":   s.End.Format(DateLayout),
		},
		"totals": map[string]interface{}{
			"revenue":         s.Totals.TotalRevenue,
			"units":           s.Totals.TotalUnits,
			"sessions":        s.Totals.TotalSessions,
			"conversion_rate": s.Totals.ConversionRate,
			"refund_rate":     s.Totals.RefundRate,
		},
		"top_products": products,
	}
}

// FormatTextReport renders a Summary as a multi-line console report.
func FormatTextReport(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Window: %s to %s\n", s.Start.Format(DateLayout), s.End.Format(DateLayout))
	fmt.Fprintf(&b, "Source: %s\n", s.SourceName)
	fmt.Fprintf(&b, "Totals: Revenue $%s, Units %d, Sessions %d, CVR %.2f%%, Refund Rate %.2f%%",
		formatMoney(s.Totals.TotalRevenue), s.Totals.TotalUnits, s.Totals.TotalSessions,
		s.Totals.ConversionRate*100, s.Totals.RefundRate*100)

	if len(s.TopProducts) == 0 {
		b.WriteString("\nNo product records available.")
		return b.String()
	}

	b.WriteString("\nTop products (by revenue):")
	for i, p := range s.TopProducts {
		buyBox := "Buy Box n/a"
		if p.BuyBoxPercentage != nil {
			buyBox = fmt.Sprintf("Buy Box %.2f%%", *p.BuyBoxPercentage)
		}
		fmt.Fprintf(&b, "\n%d. %s (%s) - Revenue $%s, Units %d, Sessions %d, CVR %.2f%%, Refunds %d, %s",
			i+1, p.Title, p.ASIN, formatMoney(p.Revenue), p.Units, p.Sessions,
			p.ConversionRate*100, p.Refunds, buyBox)
	}
	return b.String()
}

// formatMoney renders an amount with thousands separators and two decimals.
func formatMoney(amount float64) string {
	s := fmt.Sprintf("%.2f", amount)
	dot := strings.IndexByte(s, '.')
	intPart, fracPart := s[:dot], s[dot:]

	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	var parts []string
	for len(intPart) > 3 {
		parts = append([]string{intPart[len(intPart)-3:]}, parts...)
		intPart = intPart[:len(intPart)-3]
	}
	parts = append([]string{intPart}, parts...)
	out := strings.Join(parts, ",") + fracPart
	if neg {
		out = "-" + out
	}
	return out
}
