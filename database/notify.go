package database

import (
	"fmt"
	"log"

	"fieldops_backend/models"

	"gorm.io/gorm"
)

const notifyFunction = `
CREATE OR REPLACE FUNCTION fieldops_notify_change() RETURNS trigger AS $$
DECLARE
	row_id text;
BEGIN
	IF TG_OP = 'DELETE' THEN
		row_id := OLD.id;
	ELSE
		row_id := NEW.id;
	END IF;
	PERFORM pg_notify('%s', json_build_object(
		'kind', lower(TG_OP),
		'collection', TG_TABLE_NAME,
		'id', row_id
	)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;`

// InstallChangeTriggers создает в PostgreSQL функцию и триггеры, которые
// отправляют NOTIFY при каждом изменении строк коллекций
func InstallChangeTriggers(db *gorm.DB, channel string) error {
	if db.Dialector.Name() != "postgres" {
		return fmt.Errorf("триггеры уведомлений поддерживаются только в PostgreSQL, а не в %s", db.Dialector.Name())
	}
	if !isSafeName(channel) {
		return fmt.Errorf("недопустимое имя канала %q", channel)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf(notifyFunction, channel)).Error; err != nil {
			return fmt.Errorf("не удалось создать функцию уведомлений: %w", err)
		}

		for _, name := range models.CollectionNames() {
			trigger := "fieldops_notify_" + name
			if err := tx.Exec(fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", trigger, name)).Error; err != nil {
				return fmt.Errorf("не удалось удалить триггер %s: %w", trigger, err)
			}
			create := fmt.Sprintf(
				"CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s FOR EACH ROW EXECUTE FUNCTION fieldops_notify_change()",
				trigger, name,
			)
			if err := tx.Exec(create).Error; err != nil {
				return fmt.Errorf("не удалось создать триггер %s: %w", trigger, err)
			}
		}

		log.Printf("✅ Триггеры уведомлений установлены (канал %s)", channel)
		return nil
	})
}
