// Package server implements a thin gRPC administration surface (DDL +
// introspection, not a query executor) over the storage engine's
// Catalog, grounded on the teacher's service-wrapper pattern: a struct
// embedding the engine's long-lived handles, one method per RPC,
// status.Error for client-facing failures.
package server

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nikhilrao/relstore/internal/logger"
	"github.com/nikhilrao/relstore/internal/metrics"
	"github.com/nikhilrao/relstore/pkg/catalog"
	"github.com/nikhilrao/relstore/pkg/dberrors"
	"github.com/nikhilrao/relstore/pkg/engine"
	"github.com/nikhilrao/relstore/pkg/record"
)

// Server implements the StorageAdmin RPCs over one *engine.Engine.
type Server struct {
	eng *engine.Engine
	log *logger.Logger
	met *metrics.Metrics

	startTime time.Time
}

// NewServer opens (or creates) the database at opts.Path and wraps it
// in an admin server.
func NewServer(opts engine.Options) (*Server, error) {
	eng, err := engine.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Server{
		eng:       eng,
		log:       eng.Logger.Component("server"),
		met:       eng.Metrics,
		startTime: time.Now(),
	}, nil
}

// Close flushes and closes the underlying engine.
func (s *Server) Close() error {
	return s.eng.Close()
}

// Metrics returns the engine's Prometheus collectors, possibly nil if
// EnableMetrics was false, for wiring into GrpcMetricsInterceptor.
func (s *Server) Metrics() *metrics.Metrics {
	return s.met
}

// statusFromErr maps a *dberrors.Error to the closest grpc status code;
// any other error becomes codes.Internal.
func statusFromErr(op string, err error) error {
	if err == nil {
		return nil
	}
	dberr, ok := err.(*dberrors.Error)
	if !ok {
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	}
	switch dberr.Kind {
	case dberrors.AlreadyExists:
		return status.Error(codes.AlreadyExists, dberr.Error())
	case dberrors.NotFound:
		return status.Error(codes.NotFound, dberr.Error())
	case dberrors.OutOfSpace, dberrors.PageFull:
		return status.Error(codes.ResourceExhausted, dberr.Error())
	case dberrors.PinnedPageInUse:
		return status.Error(codes.Unavailable, dberr.Error())
	case dberrors.CorruptPage, dberrors.IoError:
		return status.Error(codes.DataLoss, dberr.Error())
	default:
		return status.Error(codes.Internal, dberr.Error())
	}
}

func stringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	return req.Fields[name].GetStringValue()
}

// ========== CreateTable ==========
//
// Request: {"name": string, "columns": [{"name","type","length","nullable","unique"}]}
// Response: {"table_id": number, "name": string}

func (s *Server) CreateTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := stringField(req, "name")
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	colsVal, ok := req.Fields["columns"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "columns is required")
	}

	cols, err := decodeColumns(colsVal.GetListValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	schema := record.NewSchema(cols)
	info, err := s.eng.CreateTable(name, schema)
	if err != nil {
		return nil, statusFromErr("CreateTable", err)
	}

	s.log.Info("created table").Str("name", name).Uint32("table_id", info.ID).Send()
	return structpb.NewStruct(map[string]interface{}{
		"table_id": float64(info.ID),
		"name":     info.Name,
	})
}

func decodeColumns(list *structpb.ListValue) ([]record.Column, error) {
	if list == nil {
		return nil, status.Error(codes.InvalidArgument, "columns must be a list")
	}
	cols := make([]record.Column, 0, len(list.Values))
	for i, v := range list.Values {
		obj := v.GetStructValue()
		if obj == nil {
			return nil, status.Errorf(codes.InvalidArgument, "columns[%d] must be an object", i)
		}
		name := obj.Fields["name"].GetStringValue()
		typ, err := parseType(obj.Fields["type"].GetStringValue())
		if err != nil {
			return nil, err
		}
		length := int(obj.Fields["length"].GetNumberValue())
		nullable := obj.Fields["nullable"].GetBoolValue()
		unique := obj.Fields["unique"].GetBoolValue()
		cols = append(cols, record.NewColumn(name, typ, length, i, nullable, unique))
	}
	return cols, nil
}

func parseType(s string) (record.Type, error) {
	switch s {
	case "int32", "INT", "int":
		return record.TypeInt32, nil
	case "float32", "FLOAT", "float":
		return record.TypeFloat32, nil
	case "char", "CHAR", "string":
		return record.TypeChar, nil
	default:
		return record.TypeInvalid, status.Errorf(codes.InvalidArgument, "unknown column type %q", s)
	}
}

// ========== CreateIndex ==========
//
// Request: {"table": string, "name": string, "columns": [number,...]}
// Response: {"index_id": number, "name": string}

func (s *Server) CreateIndex(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	table := stringField(req, "table")
	name := stringField(req, "name")
	if table == "" || name == "" {
		return nil, status.Error(codes.InvalidArgument, "table and name are required")
	}
	colsVal := req.Fields["columns"].GetListValue()
	if colsVal == nil {
		return nil, status.Error(codes.InvalidArgument, "columns is required")
	}
	keyCols := make([]int, len(colsVal.Values))
	for i, v := range colsVal.Values {
		keyCols[i] = int(v.GetNumberValue())
	}

	info, err := s.eng.CreateIndex(table, name, keyCols)
	if err != nil {
		return nil, statusFromErr("CreateIndex", err)
	}

	s.log.Info("created index").Str("table", table).Str("name", name).Send()
	return structpb.NewStruct(map[string]interface{}{
		"index_id": float64(info.ID),
		"name":     info.Name,
	})
}

// ========== GetTableInfo ==========
//
// Request: {"name": string}
// Response: {"table_id","name","columns":[...],"indexes":[...],"row_count"}

func (s *Server) GetTableInfo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := stringField(req, "name")
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}

	info, err := s.eng.Catalog.GetTable(name)
	if err != nil {
		return nil, statusFromErr("GetTableInfo", err)
	}

	cols := make([]interface{}, len(info.Schema.Columns))
	for i, c := range info.Schema.Columns {
		cols[i] = map[string]interface{}{
			"name":     c.Name,
			"type":     c.Type.String(),
			"length":   float64(c.Length),
			"nullable": c.Nullable,
			"unique":   c.Unique,
		}
	}

	indexes := s.eng.Catalog.GetTableIndexes(name)
	idxOut := make([]interface{}, len(indexes))
	for i, idx := range indexes {
		idxOut[i] = idx.Name
	}

	rowCount, err := countRows(info)
	if err != nil {
		return nil, statusFromErr("GetTableInfo", err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"table_id":  float64(info.ID),
		"name":      info.Name,
		"columns":   cols,
		"indexes":   idxOut,
		"row_count": float64(rowCount),
	})
}

// countRows walks the table heap to report a live row count; GetTableInfo
// is an introspection RPC, not a hot path, so a full scan is acceptable.
func countRows(info *catalog.TableInfo) (int, error) {
	it, err := info.Heap.Begin()
	if err != nil {
		return 0, err
	}
	n := 0
	for it.Valid() {
		n++
		if err := it.Next(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// ========== Stats ==========
//
// Response: {"tables": number, "indexes": number, "allocated_pages": number, "uptime_seconds": number}

func (s *Server) Stats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tables := s.eng.Catalog.GetTables()
	indexCount := 0
	for _, t := range tables {
		indexCount += len(s.eng.Catalog.GetTableIndexes(t.Name))
	}

	return structpb.NewStruct(map[string]interface{}{
		"tables":          float64(len(tables)),
		"indexes":         float64(indexCount),
		"allocated_pages": float64(s.eng.Disk.AllocatedPages()),
		"uptime_seconds":  time.Since(s.startTime).Seconds(),
	})
}

// ========== Health ==========

func (s *Server) Health(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"status": "serving",
	})
}
