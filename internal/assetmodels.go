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

const assetModelColumns = `id, name, manufacturer, category, notes, created_at, updated_at`

func (s *Server) listAssetModels(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)

	clauses := []string{}
	args := []interface{}{}
	arg := 1

	if params.q != "" {
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR manufacturer ILIKE $%d)", arg, arg))
		args = append(args, "%"+params.q+"%")
		arg++
	}
	if cat := strings.TrimSpace(r.URL.Query().Get("category")); cat != "" {
		clauses = append(clauses, fmt.Sprintf("category = $%d", arg))
		args = append(args, cat)
		arg++
	}

	whereClause := ""
	if len(clauses) > 0 {
		whereClause = " WHERE " + strings.Join(clauses, " AND ")
	}

	sqlStr := fmt.Sprintf(`
		SELECT `+assetModelColumns+`, COUNT(*) OVER() as total_count
		FROM asset_models%s`, whereClause)

	allowedSort := map[string]string{
		"id":         "id",
		"name":       "name",
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

	outModels := []models.AssetModel{}
	var totalCount int
	for rows.Next() {
		var m models.AssetModel
		if err := rows.Scan(&m.ID, &m.Name, &m.Manufacturer, &m.Category, &m.Notes,
			&m.CreatedAt, &m.UpdatedAt, &totalCount); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		outModels = append(outModels, m)
	}

	sendListResponse(w, outModels, totalCount, params)
}

func (s *Server) getAssetModel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var m models.AssetModel
	err := s.DB.QueryRowContext(r.Context(), `
		SELECT `+assetModelColumns+` FROM asset_models WHERE id = $1`, id).Scan(
		&m.ID, &m.Name, &m.Manufacturer, &m.Category, &m.Notes, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) createAssetModel(w http.ResponseWriter, r *http.Request) {
	var in models.CreateAssetModelRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}
	if in.Name == "" {
		http.Error(w, "name is required", 400)
		return
	}

	var m models.AssetModel
	err := s.DB.QueryRowContext(r.Context(), `
		INSERT INTO asset_models (name, manufacturer, category, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING `+assetModelColumns,
		in.Name, in.Manufacturer, in.Category, in.Notes).Scan(
		&m.ID, &m.Name, &m.Manufacturer, &m.Category, &m.Notes, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) updateAssetModel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var in models.UpdateAssetModelRequest
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
	if in.Manufacturer != nil {
		setParts = append(setParts, fmt.Sprintf("manufacturer = $%d", argIndex))
		args = append(args, in.Manufacturer)
		argIndex++
	}
	if in.Category != nil {
		setParts = append(setParts, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, in.Category)
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
	sqlStr := fmt.Sprintf(`
		UPDATE asset_models SET %s
		WHERE id = $%d
		RETURNING `+assetModelColumns,
		strings.Join(setParts, ", "), argIndex)
	args = append(args, id)

	var m models.AssetModel
	if err := s.DB.QueryRowContext(r.Context(), sqlStr, args...).Scan(
		&m.ID, &m.Name, &m.Manufacturer, &m.Category, &m.Notes, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) deleteAssetModel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var itemCount int
	if err := s.DB.QueryRowContext(r.Context(), `
		SELECT (SELECT COUNT(*) FROM asset_items WHERE asset_model_id = $1)
		     + (SELECT COUNT(*) FROM stock_items WHERE asset_model_id = $1)`, id).Scan(&itemCount); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if itemCount > 0 {
		http.Error(w, "asset model still has items", http.StatusConflict)
		return
	}

	res, err := s.DB.ExecContext(r.Context(), `DELETE FROM asset_models WHERE id = $1`, id)
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

// generateAssetItems bulk-creates serialized items under a model, tagging them
// PREFIX-001, PREFIX-002, ... after the highest existing tag with that prefix.
func (s *Server) generateAssetItems(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var in models.GenerateAssetItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}
	if in.Count < 1 || in.Count > 500 {
		http.Error(w, "count must be between 1 and 500", 400)
		return
	}
	if in.TagPrefix == "" {
		http.Error(w, "tag_prefix is required", 400)
		return
	}

	tx, err := s.DB.BeginTx(r.Context(), nil)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(r.Context(),
		`SELECT EXISTS(SELECT 1 FROM asset_models WHERE id = $1)`, id).Scan(&exists); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if !exists {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	// Next sequence number under the prefix. Length arithmetic instead of a
	// pattern so prefixes holding regex or LIKE metacharacters stay literal.
	var next int
	if err := tx.QueryRowContext(r.Context(), `
		SELECT COALESCE(MAX(substring(asset_tag FROM char_length($1) + 1)::int), 0) + 1
		FROM asset_items
		WHERE left(asset_tag, char_length($1)) = $1
		  AND substring(asset_tag FROM char_length($1) + 1) ~ '^[0-9]+$'`,
		in.TagPrefix+"-").Scan(&next); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	items := make([]models.AssetItem, 0, in.Count)
	for i := 0; i < in.Count; i++ {
		tag := fmt.Sprintf("%s-%03d", in.TagPrefix, next+i)
		var it models.AssetItem
		err := tx.QueryRowContext(r.Context(), `
			INSERT INTO asset_items (asset_model_id, asset_tag, status)
			VALUES ($1, $2, $3)
			RETURNING `+assetItemColumns,
			id, tag, models.StatusEnStock).Scan(
			&it.ID, &it.AssetModelID, &it.AssetTag, &it.SerialNumber, &it.Status,
			&it.Notes, &it.CreatedAt, &it.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				http.Error(w, "asset_tag "+tag+" already exists", http.StatusConflict)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		items = append(items, it)
	}

	if err := tx.Commit(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, items)
}
