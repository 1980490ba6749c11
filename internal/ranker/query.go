package ranker

import (
	"strings"

	"github.com/dshills/saasrank/pkg/types"
)

// DefaultCategoryLabels expands a category code into search keywords so
// lexical retrieval can match catalog documents written in Japanese.
var DefaultCategoryLabels = map[types.Category]string{
	types.CategoryAccounting:  "会計 経理 決算",
	types.CategoryExpense:     "経費精算 経費管理 交通費",
	types.CategoryAttendance:  "勤怠管理 出退勤 シフト",
	types.CategoryHR:          "人事労務 入社手続き 年末調整",
	types.CategoryWorkflow:    "ワークフロー 申請 承認",
	types.CategoryEContract:   "電子契約 契約書 署名",
	types.CategoryInvoice:     "請求書 請求管理",
	types.CategoryProcurement: "購買 調達",
}

// BuildQueryText derives the retrieval query from structured input:
// category keywords, then each problem, then the free text. Unknown
// categories fall back to the category code itself.
func BuildQueryText(q types.Query, labels map[types.Category]string) string {
	parts := make([]string, 0, len(q.Problems)+2)

	if q.Category != "" {
		if label, ok := labels[q.Category]; ok && label != "" {
			parts = append(parts, label)
		} else {
			parts = append(parts, string(q.Category))
		}
	}

	for _, p := range q.Problems {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	if free := strings.TrimSpace(q.ProblemFreeText); free != "" {
		parts = append(parts, free)
	}

	return strings.Join(parts, " ")
}
