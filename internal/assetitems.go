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

const assetItemColumns = `id, asset_model_id, asset_tag, serial_number, status, notes, created_at, updated_at`

func scanAssetItemRow(row *sql.Row, it *models.AssetItem) error {
	return row.Scan(&it.ID, &it.AssetModelID, &it.AssetTag, &it.SerialNumber,
		&it.Status, &it.Notes, &it.CreatedAt, &it.UpdatedAt)
}

func (s *Server) listAssetItems(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)

	clauses := []string{}
	args := []interface{}{}
	arg := 1

	if params.q != "" {
		clauses = append(clauses, fmt.Sprintf("(asset_tag ILIKE $%d OR serial_number ILIKE $%d)", arg, arg))
		args = append(args, "%"+params.q+"%")
		arg++
	}
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		if !models.IsValidAssetItemStatus(status) {
			http.Error(w, "invalid status filter", 400)
			return
		}
		clauses = append(clauses, fmt.Sprintf("status = $%d", arg))
		args = append(args, status)
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
		SELECT `+assetItemColumns+`, COUNT(*) OVER() as total_count
		FROM asset_items%s`, whereClause)

	allowedSort := map[string]string{
		"id":         "id",
		"asset_tag":  "asset_tag",
		"status":     "status",
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

	items := []models.AssetItem{}
	var totalCount int
	for rows.Next() {
		var it models.AssetItem
		if err := rows.Scan(&it.ID, &it.AssetModelID, &it.AssetTag, &it.SerialNumber,
			&it.Status, &it.Notes, &it.CreatedAt, &it.UpdatedAt, &totalCount); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		items = append(items, it)
	}

	sendListResponse(w, items, totalCount, params)
}

func (s *Server) getAssetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var it models.AssetItem
	err := scanAssetItemRow(s.DB.QueryRowContext(r.Context(), `
		SELECT `+assetItemColumns+` FROM asset_items WHERE id = $1`, id), &it)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) createAssetItem(w http.ResponseWriter, r *http.Request) {
	var in models.CreateAssetItemRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}
	if in.AssetModelID <= 0 || in.AssetTag == "" {
		http.Error(w, "asset_model_id and asset_tag are required", 400)
		return
	}

	status := models.StatusEnStock
	if in.Status != nil {
		status = *in.Status
	}
	if !models.IsValidAssetItemStatus(status) {
		http.Error(w, "invalid status", 400)
		return
	}
	// PRETE is owned by the loan path
	if status == models.StatusPrete {
		http.Error(w, "status PRETE can only be set by the loan workflow", 400)
		return
	}

	var it models.AssetItem
	err := scanAssetItemRow(s.DB.QueryRowContext(r.Context(), `
		INSERT INTO asset_items (asset_model_id, asset_tag, serial_number, status, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+assetItemColumns,
		in.AssetModelID, in.AssetTag, in.SerialNumber, status, in.Notes), &it)
	if err != nil {
		if isUniqueViolation(err) {
			http.Error(w, "asset_tag or serial_number already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (s *Server) updateAssetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var in models.UpdateAssetItemRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}

	setParts := []string{}
	args := []interface{}{}
	argIndex := 1

	if in.AssetTag != nil {
		setParts = append(setParts, fmt.Sprintf("asset_tag = $%d", argIndex))
		args = append(args, *in.AssetTag)
		argIndex++
	}
	if in.SerialNumber != nil {
		setParts = append(setParts, fmt.Sprintf("serial_number = $%d", argIndex))
		args = append(args, in.SerialNumber)
		argIndex++
	}
	if in.Status != nil {
		if !models.IsValidAssetItemStatus(*in.Status) {
			http.Error(w, "invalid status", 400)
			return
		}
		if *in.Status == models.StatusPrete {
			http.Error(w, "status PRETE can only be set by the loan workflow", 400)
			return
		}
		setParts = append(setParts, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *in.Status)
		argIndex++
	}
	if in.Notes != nil {
		setParts = append(setParts, fmt.Sprintf("notes = $%d", argIndex))
		args = append(args, in.Notes)
		argIndex++
	}
	if len(setParts) == 0 {
		http.Error(w, "no fields to update", 400)
		return
	}

	setParts = append(setParts, "updated_at = now()")
	// An item on loan cannot be edited out from under its loan line
	sqlStr := fmt.Sprintf(`
		UPDATE asset_items SET %s
		WHERE id = $%d AND status <> $%d
		RETURNING `+assetItemColumns,
		strings.Join(setParts, ", "), argIndex, argIndex+1)
	args = append(args, id, models.StatusPrete)

	var it models.AssetItem
	if err := scanAssetItemRow(s.DB.QueryRowContext(r.Context(), sqlStr, args...), &it); err != nil {
		if err == sql.ErrNoRows {
			// Either the item does not exist or it is currently PRETE
			var status string
			serr := s.DB.QueryRowContext(r.Context(),
				`SELECT status FROM asset_items WHERE id = $1`, id).Scan(&status)
			if serr == nil && status == models.StatusPrete {
				http.Error(w, "asset item is currently on loan", http.StatusConflict)
				return
			}
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if isUniqueViolation(err) {
			http.Error(w, "asset_tag or serial_number already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) deleteAssetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	// Never delete while actively loaned
	res, err := s.DB.ExecContext(r.Context(),
		`DELETE FROM asset_items WHERE id = $1 AND status <> $2`, id, models.StatusPrete)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var status string
		serr := s.DB.QueryRowContext(r.Context(),
			`SELECT status FROM asset_items WHERE id = $1`, id).Scan(&status)
		if serr == nil && status == models.StatusPrete {
			http.Error(w, "asset item is currently on loan", http.StatusConflict)
			return
		}
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
