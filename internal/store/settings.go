package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
)

// Settings keys for branding.
const (
	settingCompanyName = "company_name"
	settingLogoPath    = "logo_path"
	settingAccentColor = "accent_color"
)

// SaveBranding validates and persists the branding settings.
// Empty values are stored as empty strings and read back unchanged.
func (s *Store) SaveBranding(ctx context.Context, b record.Branding) error {
	const op = "save_branding"

	if err := b.Validate(); err != nil {
		return err
	}

	values := []struct{ key, value string }{
		{settingCompanyName, b.CompanyName},
		{settingLogoPath, b.LogoPath},
		{settingAccentColor, b.AccentColor},
	}

	return s.withTx(ctx, op, func(tx *sql.Tx) error {
		for _, v := range values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO settings (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value
			`, v.key, v.value)
			if err != nil {
				return s.storageErr(op, fmt.Errorf("write setting %s: %w", v.key, err))
			}
		}
		return nil
	})
}

// LoadBranding returns the stored branding. Missing keys read as empty.
func (s *Store) LoadBranding(ctx context.Context) (record.Branding, error) {
	const op = "load_branding"

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM settings WHERE key IN (?, ?, ?)
	`, settingCompanyName, settingLogoPath, settingAccentColor)
	if err != nil {
		return record.Branding{}, s.storageErr(op, fmt.Errorf("query settings: %w", err))
	}
	defer rows.Close()

	var b record.Branding
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return record.Branding{}, s.storageErr(op, fmt.Errorf("scan setting: %w", err))
		}
		switch key {
		case settingCompanyName:
			b.CompanyName = value
		case settingLogoPath:
			b.LogoPath = value
		case settingAccentColor:
			b.AccentColor = value
		}
	}
	if err := rows.Err(); err != nil {
		return record.Branding{}, s.storageErr(op, fmt.Errorf("iterate settings: %w", err))
	}
	return b, nil
}
