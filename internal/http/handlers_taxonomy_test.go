package http

import (
	"fmt"
	"net/http"
	"testing"
)

func TestAccountCRUD(t *testing.T) {
	f := newServerFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/accounts", createAccountRequest{
		Name:           "Savings",
		OpeningBalance: "250.00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d (body %s)", rec.Code, rec.Body.String())
	}
	created := decodeBody[accountJSON](t, rec)
	if created.Balance != "250.00" || created.BalanceCents != 250_00 {
		t.Errorf("balance = %s (%d cents)", created.Balance, created.BalanceCents)
	}

	accounts := decodeBody[[]accountJSON](t, f.do(t, http.MethodGet, "/accounts", nil))
	if len(accounts) != 2 { // seeded Checking plus Savings
		t.Fatalf("got %d accounts, want 2", len(accounts))
	}

	rec = f.do(t, http.MethodPut, fmt.Sprintf("/accounts/%d", created.ID), updateAccountRequest{Name: "Emergency fund"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if renamed := decodeBody[accountJSON](t, rec); renamed.Name != "Emergency fund" {
		t.Errorf("name = %q", renamed.Name)
	}

	if rec := f.do(t, http.MethodDelete, fmt.Sprintf("/accounts/%d", created.ID), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	accounts = decodeBody[[]accountJSON](t, f.do(t, http.MethodGet, "/accounts", nil))
	if len(accounts) != 1 {
		t.Errorf("got %d accounts after delete, want 1", len(accounts))
	}
}

func TestAccountValidation(t *testing.T) {
	f := newServerFixture(t, nil)

	if rec := f.do(t, http.MethodPost, "/accounts", createAccountRequest{Name: ""}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty name: status = %d, want 422", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/accounts", createAccountRequest{Name: "X", OpeningBalance: "nope"}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad balance: status = %d, want 422", rec.Code)
	}
	if rec := f.do(t, http.MethodPut, "/accounts/999", updateAccountRequest{Name: "x"}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", rec.Code)
	}
}

func TestCategoryCRUD(t *testing.T) {
	f := newServerFixture(t, nil)
	period := string(f.category.Period)

	rec := f.do(t, http.MethodPost, "/categories", createCategoryRequest{Name: "Transport", Period: period})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d (body %s)", rec.Code, rec.Body.String())
	}
	created := decodeBody[categoryJSON](t, rec)
	if created.Spent != "0.00" {
		t.Errorf("new category spent = %s, want 0.00", created.Spent)
	}

	categories := decodeBody[[]categoryJSON](t, f.do(t, http.MethodGet, "/categories?period="+period, nil))
	if len(categories) != 2 { // seeded Food plus Transport
		t.Fatalf("got %d categories, want 2", len(categories))
	}

	if rec := f.do(t, http.MethodDelete, fmt.Sprintf("/categories/%d", created.ID), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d", rec.Code)
	}
}

func TestCategoryValidation(t *testing.T) {
	f := newServerFixture(t, nil)

	if rec := f.do(t, http.MethodPost, "/categories", createCategoryRequest{Name: ""}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty name: status = %d, want 422", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/categories", createCategoryRequest{Name: "X", Period: "2026/09"}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad period: status = %d, want 422", rec.Code)
	}
}
