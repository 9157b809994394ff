package timeval

import (
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// GormDataType reports the generic column kind of Optional.
func (Optional) GormDataType() string {
	return "time"
}

// GormDBDataType keeps the column a plain TIME. gorm would otherwise map the
// generic "time" kind to DATETIME.
func (Optional) GormDBDataType(*gorm.DB, *schema.Field) string {
	return "TIME"
}
