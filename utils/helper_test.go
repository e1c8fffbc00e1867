package utils_test

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/zawbuild/sitebooks_backend/utils"
)

func TestParseDecimal(t *testing.T) {
	d, err := utils.ParseDecimal(" 120.50 ")
	if err != nil {
		t.Fatalf("ParseDecimal: %v", err)
	}
	if d.String() != "120.5" {
		t.Fatalf("ParseDecimal = %s, want 120.5", d)
	}

	if _, err := utils.ParseDecimal(""); err == nil {
		t.Fatal("expected error for empty string")
	}
	if _, err := utils.ParseDecimal("not a number"); err == nil {
		t.Fatal("expected error for non-numeric string")
	}
}

func TestProcessValidationErrors(t *testing.T) {
	type payload struct {
		Name string `validate:"required"`
	}

	err := validator.New().Struct(payload{})
	if err == nil {
		t.Fatal("expected a validation error")
	}
	fields := utils.ProcessValidationErrors(err)
	if fields["Name"] != "required" {
		t.Fatalf("fields = %v, want Name:required", fields)
	}
}

func TestIsLockConflict(t *testing.T) {
	if !utils.IsLockConflict(&mysql.MySQLError{Number: 1213}) {
		t.Fatal("deadlock should be a lock conflict")
	}
	if !utils.IsLockConflict(&mysql.MySQLError{Number: 1205}) {
		t.Fatal("lock wait timeout should be a lock conflict")
	}
	if utils.IsLockConflict(&mysql.MySQLError{Number: 1062}) {
		t.Fatal("duplicate key is not a lock conflict")
	}
	if utils.IsLockConflict(errors.New("boom")) {
		t.Fatal("plain errors are not lock conflicts")
	}
}
