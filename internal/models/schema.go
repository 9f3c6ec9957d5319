package models

type FieldType string

const (
	TypeString    FieldType = "STRING"
	TypeFloat     FieldType = "FLOAT"
	TypeInteger   FieldType = "INTEGER"
	TypeBoolean   FieldType = "BOOLEAN"
	TypeTimestamp FieldType = "TIMESTAMP"
)

type FieldMode string

const (
	ModeNullable FieldMode = "NULLABLE"
	ModeRequired FieldMode = "REQUIRED"
	ModeRepeated FieldMode = "REPEATED"
)

type Field struct {
	Name string
	Type FieldType
	Mode FieldMode
}

// TableSchema describes one warehouse table: day partitioned on
// PartitionField and clustered on ClusterField.
type TableSchema struct {
	Name           string
	Category       Category
	Fields         []Field
	PartitionField string
	ClusterField   string
}

func (s TableSchema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// TimestampFields lists fields whose values are canonicalised by the anonymizer.
func (s TableSchema) TimestampFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Type == TypeTimestamp {
			out = append(out, f.Name)
		}
	}
	return out
}

func required(name string, t FieldType) Field { return Field{Name: name, Type: t, Mode: ModeRequired} }
func nullable(name string, t FieldType) Field { return Field{Name: name, Type: t, Mode: ModeNullable} }
func repeated(name string, t FieldType) Field { return Field{Name: name, Type: t, Mode: ModeRepeated} }

func newSchema(c Category, fields ...Field) TableSchema {
	all := []Field{required(FieldAnonymousUserID, TypeString)}
	all = append(all, fields...)
	all = append(all,
		required(FieldTimestamp, TypeTimestamp),
		nullable(FieldCreatedAt, TypeTimestamp),
		nullable(FieldExportedAt, TypeTimestamp),
	)
	return TableSchema{
		Name:           c.Table(),
		Category:       c,
		Fields:         all,
		PartitionField: FieldTimestamp,
		ClusterField:   FieldAnonymousUserID,
	}
}

var schemas = map[Category]TableSchema{
	CategoryFood: newSchema(CategoryFood,
		nullable("foodName", TypeString),
		nullable("mealType", TypeString),
		nullable("servingSize", TypeString),
		nullable("calories", TypeFloat),
		nullable("protein", TypeFloat),
		nullable("carbs", TypeFloat),
		nullable("fat", TypeFloat),
		nullable("fiber", TypeFloat),
	),
	CategoryExercise: newSchema(CategoryExercise,
		nullable("exerciseType", TypeString),
		nullable("duration", TypeInteger),
		nullable("intensity", TypeString),
		nullable("caloriesBurned", TypeFloat),
	),
	CategoryWater: newSchema(CategoryWater,
		nullable("amount", TypeFloat),
		nullable("unit", TypeString),
	),
	CategorySleep: newSchema(CategorySleep,
		nullable("duration", TypeFloat),
		nullable("quality", TypeInteger),
		nullable("bedtime", TypeTimestamp),
		nullable("wakeTime", TypeTimestamp),
	),
	CategoryMood: newSchema(CategoryMood,
		nullable("rating", TypeInteger),
		repeated("factors", TypeString),
		nullable("energyLevel", TypeInteger),
	),
}

// SchemaFor returns the fixed warehouse schema of a category.
func SchemaFor(c Category) TableSchema {
	return schemas[c]
}

// Schemas returns all table schemas in category order.
func Schemas() []TableSchema {
	out := make([]TableSchema, 0, len(allCategories))
	for _, c := range allCategories {
		out = append(out, schemas[c])
	}
	return out
}

// Row is one result row of a warehouse query, keyed by column name.
type Row map[string]any
