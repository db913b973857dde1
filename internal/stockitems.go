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

const stockItemColumns = `id, asset_model_id, name, quantity, loaned, created_at, updated_at`

func scanStockItemRow(row *sql.Row, st *models.StockItem) error {
	return row.Scan(&st.ID, &st.AssetModelID, &st.Name, &st.Quantity,
		&st.Loaned, &st.CreatedAt, &st.UpdatedAt)
}

func (s *Server) listStockItems(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)

	clauses := []string{}
	args := []interface{}{}
	arg := 1

	if params.q != "" {
		clauses = append(clauses, fmt.Sprintf("name ILIKE $%d", arg))
		args = append(args, "%"+params.q+"%")
		arg++
	}
	if modelID := strings.TrimSpace(r.URL.Query().Get("asset_model_id")); modelID != "" {
		id, ok := parseID(modelID)
		if !ok {
			http.Error(w, "invalid asset_model_id filter", 400)
			return
		}
		clauses = append(clauses, fmt.Sprintf("asset_model_id = $%d", arg))
		args = append(args, id)
		arg++
	}

	whereClause := ""
	if len(clauses) > 0 {
		whereClause = " WHERE " + strings.Join(clauses, " AND ")
	}

	sqlStr := fmt.Sprintf(`
		SELECT `+stockItemColumns+`, COUNT(*) OVER() as total_count
		FROM stock_items%s`, whereClause)

	allowedSort := map[string]string{
		"id":         "id",
		"name":       "name",
		"quantity":   "quantity",
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

	items := []models.StockItem{}
	var totalCount int
	for rows.Next() {
		var st models.StockItem
		if err := rows.Scan(&st.ID, &st.AssetModelID, &st.Name, &st.Quantity,
			&st.Loaned, &st.CreatedAt, &st.UpdatedAt, &totalCount); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		items = append(items, st)
	}

	sendListResponse(w, items, totalCount, params)
}

func (s *Server) getStockItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var st models.StockItem
	err := scanStockItemRow(s.DB.QueryRowContext(r.Context(), `
		SELECT `+stockItemColumns+` FROM stock_items WHERE id = $1`, id), &st)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) createStockItem(w http.ResponseWriter, r *http.Request) {
	var in models.CreateStockItemRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}
	if in.Name == "" {
		http.Error(w, "name is required", 400)
		return
	}
	if in.Quantity < 0 {
		http.Error(w, "quantity must not be negative", 400)
		return
	}

	var st models.StockItem
	err := scanStockItemRow(s.DB.QueryRowContext(r.Context(), `
		INSERT INTO stock_items (asset_model_id, name, quantity)
		VALUES ($1, $2, $3)
		RETURNING `+stockItemColumns,
		in.AssetModelID, in.Name, in.Quantity), &st)
	if err != nil {
		if isUniqueViolation(err) {
			http.Error(w, "stock item with this name already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) updateStockItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var in models.UpdateStockItemRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}

	setParts := []string{}
	args := []interface{}{}
	argIndex := 1

	if in.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", argIndex))
		args = append(args, *in.Name)
		argIndex++
	}
	if in.Quantity != nil {
		if *in.Quantity < 0 {
			http.Error(w, "quantity must not be negative", 400)
			return
		}
		setParts = append(setParts, fmt.Sprintf("quantity = $%d", argIndex))
		args = append(args, *in.Quantity)
		argIndex++
	}
	if len(setParts) == 0 {
		http.Error(w, "no fields to update", 400)
		return
	}

	setParts = append(setParts, "updated_at = now()")
	// quantity can never drop below what is currently checked out
	sqlStr := fmt.Sprintf(`
		UPDATE stock_items SET %s
		WHERE id = $%d AND ($%d::int IS NULL OR $%d::int >= loaned)
		RETURNING `+stockItemColumns,
		strings.Join(setParts, ", "), argIndex, argIndex+1, argIndex+1)
	args = append(args, id)
	if in.Quantity != nil {
		args = append(args, *in.Quantity)
	} else {
		args = append(args, nil)
	}

	var st models.StockItem
	if err := scanStockItemRow(s.DB.QueryRowContext(r.Context(), sqlStr, args...), &st); err != nil {
		if err == sql.ErrNoRows {
			var loaned int
			serr := s.DB.QueryRowContext(r.Context(),
				`SELECT loaned FROM stock_items WHERE id = $1`, id).Scan(&loaned)
			if serr == nil && in.Quantity != nil && *in.Quantity < loaned {
				http.Error(w, fmt.Sprintf("quantity cannot drop below the %d units on loan", loaned), http.StatusConflict)
				return
			}
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if isUniqueViolation(err) {
			http.Error(w, "stock item with this name already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) restockStockItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var in models.RestockRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}
	if in.Quantity < 1 {
		http.Error(w, "quantity must be at least 1", 400)
		return
	}

	var st models.StockItem
	err := scanStockItemRow(s.DB.QueryRowContext(r.Context(), `
		UPDATE stock_items
		SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1
		RETURNING `+stockItemColumns, id, in.Quantity), &st)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) deleteStockItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	// Refuse while units are out on loan
	res, err := s.DB.ExecContext(r.Context(),
		`DELETE FROM stock_items WHERE id = $1 AND loaned = 0`, id)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var loaned int
		serr := s.DB.QueryRowContext(r.Context(),
			`SELECT loaned FROM stock_items WHERE id = $1`, id).Scan(&loaned)
		if serr == nil && loaned > 0 {
			http.Error(w, fmt.Sprintf("stock item has %d units on loan", loaned), http.StatusConflict)
			return
		}
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
