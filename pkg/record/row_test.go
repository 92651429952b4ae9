package record

import "testing"

func testSchema() *Schema {
	return NewSchema([]Column{
		NewColumn("a", TypeInt32, 0, 0, false, true),
		NewColumn("b", TypeChar, 8, 0, true, false),
		NewColumn("c", TypeFloat32, 0, 0, true, false),
	})
}

func TestRowRoundTrip(t *testing.T) {
	schema := testSchema()
	row := NewRow(NewInt32(42), NewChar("hello", 8), NewFloat32(3.5))

	data, err := row.SerializeTo(schema)
	if err != nil {
		t.Fatalf("SerializeTo: %v", err)
	}
	if len(data) != row.SerializedSize(schema) {
		t.Fatalf("SerializedSize mismatch: got %d, serialized %d", row.SerializedSize(schema), len(data))
	}

	got, err := DeserializeFrom(data, schema)
	if err != nil {
		t.Fatalf("DeserializeFrom: %v", err)
	}
	if !got.Equal(row) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, row)
	}
}

func TestRowRoundTripWithNulls(t *testing.T) {
	schema := testSchema()
	row := NewRow(NewInt32(1), NewNull(TypeChar), NewNull(TypeFloat32))

	data, err := row.SerializeTo(schema)
	if err != nil {
		t.Fatalf("SerializeTo: %v", err)
	}

	got, err := DeserializeFrom(data, schema)
	if err != nil {
		t.Fatalf("DeserializeFrom: %v", err)
	}
	if !got.Equal(row) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, row)
	}
	if !got.Fields[1].Null || !got.Fields[2].Null {
		t.Fatalf("expected nulls to survive round trip: %+v", got.Fields)
	}
}

func TestSchemaRoundTrip(t *testing.T) {
	schema := testSchema()
	data := schema.Serialize(nil)
	if len(data) != schema.SerializedSize() {
		t.Fatalf("SerializedSize mismatch: got %d, serialized %d", schema.SerializedSize(), len(data))
	}

	got, n, err := DeserializeSchema(data)
	if err != nil {
		t.Fatalf("DeserializeSchema: %v", err)
	}
	if n != len(data) {
		t.Fatalf("consumed %d bytes, want %d", n, len(data))
	}
	if len(got.Columns) != len(schema.Columns) {
		t.Fatalf("got %d columns, want %d", len(got.Columns), len(schema.Columns))
	}
	for i, c := range got.Columns {
		if c != schema.Columns[i] {
			t.Fatalf("column %d mismatch: got %+v, want %+v", i, c, schema.Columns[i])
		}
	}
}

func TestColumnIndex(t *testing.T) {
	schema := testSchema()
	if idx := schema.ColumnIndex("b"); idx != 1 {
		t.Fatalf("ColumnIndex(b) = %d, want 1", idx)
	}
	if idx := schema.ColumnIndex("missing"); idx != -1 {
		t.Fatalf("ColumnIndex(missing) = %d, want -1", idx)
	}
}
