/*
seed.go - Demo data loader

PURPOSE:
  Seeds a small, self-consistent book of business so the API can be
  exercised immediately: one client company with flat and tiered
  commission schemes, a scheduled debt mid-calendar, a simple debt, and
  a case old enough to pass the assignment gate.

  Intended for demos and local development. Everything goes through the
  service layer, so seeded state obeys every rule of the real system.
*/
package api

import (
	"fmt"
	"net/http"

	"github.com/recobro/collections-engine/collections"
	"github.com/recobro/collections-engine/engine"
	"github.com/recobro/collections-engine/factory"
)

// SeedDemo loads the demo book of business.
// POST /api/admin/seed?as_of=YYYY-MM-DD
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	today, ok := asOf(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", nil)
		return
	}

	ctx := r.Context()

	company := &engine.Company{
		ID:                 "finloans",
		Name:               "FinLoans S.L.",
		TaxID:              "B91234567",
		Active:             true,
		ProductTypes:       []string{"stripe", "sequra"},
		AssignableProducts: []string{"sequra"},
	}
	if err := h.Service.Store().SaveCompany(ctx, company); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed company", err)
		return
	}

	schemes := []string{
		factory.FlatSchemeJSON("finloans-arrears-flat", "finloans", engine.CategoryArrears, "12.5"),
		factory.TieredSchemeJSON("finloans-assigned-tiered", "finloans", engine.CategoryAssigned, [][3]string{
			{"0", "1000", "10"},
			{"1000", "", "5"},
		}),
	}
	for _, sj := range schemes {
		scheme, err := factory.ParseScheme(sj)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to parse seed scheme", err)
			return
		}
		if err := h.Service.SaveScheme(ctx, scheme); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to seed scheme", err)
			return
		}
	}

	scheduledDefault := today.AddMonths(-3)
	oldDefault := today.AddDays(-90)
	purchase := scheduledDefault.AddMonths(-2)

	cases := []collections.CreateCaseInput{
		{
			Number:           "EXP-1001",
			CompanyID:        "finloans",
			Agent:            "lucia",
			DebtorName:       "Marta Jimenez",
			ProductType:      "stripe",
			Principal:        engine.MustParseMoney("1200"),
			InstallmentCount: 12,
			PurchaseDate:     &purchase,
			FirstDefaultDate: &scheduledDefault,
			ReceivedDate:     scheduledDefault,
		},
		{
			Number:       "EXP-1002",
			CompanyID:    "finloans",
			Agent:        "lucia",
			DebtorName:   "Pablo Ortega",
			ProductType:  "stripe",
			Principal:    engine.MustParseMoney("350.40"),
			ReceivedDate: today,
		},
		{
			Number:           "EXP-1003",
			CompanyID:        "finloans",
			Agent:            "carlos",
			DebtorName:       "Irene Castro",
			ProductType:      "sequra",
			Principal:        engine.MustParseMoney("980"),
			InstallmentCount: 4,
			FirstDefaultDate: &oldDefault,
			ReceivedDate:     oldDefault,
		},
	}
	for _, in := range cases {
		if _, err := h.Service.CreateCase(ctx, in, today); err != nil {
			writeError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to seed case %s", in.Number), err)
			return
		}
	}

	// The assignment candidate needs its supporting document on file.
	attached := true
	if _, err := h.Service.UpdateCase(ctx, "EXP-1003", collections.CaseEdit{DocumentAttached: &attached}, today); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed case document", err)
		return
	}

	// One payment on the scheduled debt so the ledger is not empty.
	if _, _, err := h.Service.ApplyPayment(ctx, "EXP-1001", engine.PaymentRequest{
		Amount:    engine.MustParseMoney("100"),
		Method:    engine.MethodTransfer,
		PaidAt:    today,
		Reference: "DEMO-0001",
	}, today); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed payment", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"company": "finloans",
		"cases":   []string{"EXP-1001", "EXP-1002", "EXP-1003"},
		"as_of":   today.String(),
	})
}
