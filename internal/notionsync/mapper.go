package notionsync

import (
	"time"

	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the Notion transactions database.
const (
	PropDescription  = "Description"
	PropDate         = "Date"
	PropAmount       = "Amount"
	PropType         = "Type"
	PropCategory     = "Category"
	PropPaid         = "Paid"
	PropPlan         = "Plan ID"
	PropRecordID     = "Transaction ID"
	PropLastModified = "Last Modified"
)

// TransactionToNotionProperties maps a ledger transaction to page properties.
// Amount is signed: expenses are negative.
func TransactionToNotionProperties(tx domain.Transaction) notionapi.Properties {
	amount, _ := tx.SignedAmount().Float64()
	date := notionapi.Date(time.Date(tx.Date.Year, tx.Date.Month, tx.Date.Day, 0, 0, 0, 0, time.UTC))

	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: richText(tx.Description),
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
		PropType: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(tx.Type)},
		},
		PropPaid: notionapi.CheckboxProperty{
			Checkbox: tx.IsPaid,
		},
		PropRecordID: notionapi.RichTextProperty{
			RichText: richText(tx.ID),
		},
		PropLastModified: notionapi.NumberProperty{
			Number: float64(tx.LastModified),
		},
	}

	// Notion rejects empty select options.
	if tx.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Category},
		}
	}
	if tx.RelatedPlanID != "" {
		props[PropPlan] = notionapi.RichTextProperty{
			RichText: richText(tx.RelatedPlanID),
		}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

// extractRecordID returns the ledger record id stored on a page, or "" if absent.
func extractRecordID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropRecordID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
			return rt.RichText[0].PlainText
		}
	}
	return ""
}

// extractLastModified returns the stamp stored on a page, or 0 if absent.
func extractLastModified(page notionapi.Page) domain.Stamp {
	if prop, ok := page.Properties[PropLastModified]; ok {
		if n, ok := prop.(*notionapi.NumberProperty); ok {
			return domain.Stamp(n.Number)
		}
	}
	return 0
}
