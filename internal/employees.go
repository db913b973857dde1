package internal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"parc-api/internal/models"

	"github.com/go-chi/chi/v5"
)

const employeeColumns = `id, first_name, last_name, email, department, created_at, updated_at`

// LIST with basic filters & pagination
func (s *Server) listEmployees(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)

	clauses := []string{}
	args := []interface{}{}
	arg := 1

	if params.q != "" {
		clauses = append(clauses, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d)", arg, arg, arg))
		args = append(args, "%"+params.q+"%")
		arg++
	}

	whereClause := ""
	if len(clauses) > 0 {
		whereClause = " WHERE " + strings.Join(clauses, " AND ")
	}

	sqlStr := fmt.Sprintf(`
		SELECT `+employeeColumns+`, COUNT(*) OVER() as total_count
		FROM employees%s`, whereClause)

	allowedSort := map[string]string{
		"id":         "id",
		"last_name":  "last_name",
		"created_at": "created_at",
	}
	sqlStr += buildOrderBy(params.sort, allowedSort)
	sqlStr += fmt.Sprintf(" LIMIT %d OFFSET %d", params.limit, params.offset)

	rows, err := s.DB.QueryContext(r.Context(), sqlStr, args...)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	employees := []models.Employee{}
	var totalCount int
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Department,
			&e.CreatedAt, &e.UpdatedAt, &totalCount); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		employees = append(employees, e)
	}

	sendListResponse(w, employees, totalCount, params)
}

func (s *Server) getEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var e models.Employee
	err := s.DB.QueryRowContext(r.Context(), `
		SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id).Scan(
		&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Department, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) createEmployee(w http.ResponseWriter, r *http.Request) {
	var in models.CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}
	if in.FirstName == "" || in.LastName == "" {
		http.Error(w, "first_name and last_name are required", 400)
		return
	}

	var e models.Employee
	err := s.DB.QueryRowContext(r.Context(), `
		INSERT INTO employees (first_name, last_name, email, department)
		VALUES ($1, $2, $3, $4)
		RETURNING `+employeeColumns,
		in.FirstName, in.LastName, in.Email, in.Department).Scan(
		&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Department, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			http.Error(w, "email already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) updateEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var in models.UpdateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}

	setParts := []string{}
	args := []interface{}{}
	argIndex := 1

	if in.FirstName != nil {
		setParts = append(setParts, fmt.Sprintf("first_name = $%d", argIndex))
		args = append(args, *in.FirstName)
		argIndex++
	}
	if in.LastName != nil {
		setParts = append(setParts, fmt.Sprintf("last_name = $%d", argIndex))
		args = append(args, *in.LastName)
		argIndex++
	}
	if in.Email != nil {
		setParts = append(setParts, fmt.Sprintf("email = $%d", argIndex))
		args = append(args, in.Email)
		argIndex++
	}
	if in.Department != nil {
		setParts = append(setParts, fmt.Sprintf("department = $%d", argIndex))
		args = append(args, in.Department)
		argIndex++
	}
	if len(setParts) == 0 {
		http.Error(w, "no fields to update", 400)
		return
	}

	setParts = append(setParts, "updated_at = now()")
	sqlStr := fmt.Sprintf(`
		UPDATE employees SET %s
		WHERE id = $%d
		RETURNING `+employeeColumns,
		strings.Join(setParts, ", "), argIndex)
	args = append(args, id)

	var e models.Employee
	if err := s.DB.QueryRowContext(r.Context(), sqlStr, args...).Scan(
		&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Department, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if isUniqueViolation(err) {
			http.Error(w, "email already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) deleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	// Refuse to delete employees with loans on record, deleted ones included
	var loanCount int
	if err := s.DB.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM loans WHERE employee_id = $1`, id).Scan(&loanCount); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if loanCount > 0 {
		http.Error(w, "employee has loans on record", http.StatusConflict)
		return
	}

	res, err := s.DB.ExecContext(r.Context(), `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
