package featureserver

import "github.com/mohammed-shakir/snowflake-featureserver/internal/core/mapper"

const defaultIDField = "ID"

// Response is the feature-collection envelope of a query. Count is only set
// in count-only mode.
type Response struct {
	Type     string           `json:"type"`
	Features []mapper.Feature `json:"features"`
	Metadata Metadata         `json:"metadata"`
	Count    *int64           `json:"count,omitempty"`
}

type Metadata struct {
	IDField        string `json:"idField"`
	MaxRecordCount int    `json:"maxRecordCount"`
	LimitExceeded  bool   `json:"limitExceeded"`
}

// LayerDescription is the static metadata of one layer.
type LayerDescription struct {
	ID                 int         `json:"id"`
	Name               string      `json:"name"`
	Type               string      `json:"type"`
	Description        string      `json:"description"`
	GeometryType       string      `json:"geometryType"`
	IDField            string      `json:"idField"`
	ObjectIDField      string      `json:"objectIdField"`
	MaxRecordCount     int         `json:"maxRecordCount"`
	SupportsPagination bool        `json:"supportsPagination"`
	DrawingInfo        DrawingInfo `json:"drawingInfo"`
	Fields             []FieldInfo `json:"fields"`
}

type DrawingInfo struct {
	Renderer Renderer `json:"renderer"`
}

type Renderer struct {
	Type   string `json:"type"`
	Symbol Symbol `json:"symbol"`
}

// Symbol covers the esriSMS, esriSLS and esriSFS simple symbols.
type Symbol struct {
	Type    string   `json:"type"`
	Style   string   `json:"style"`
	Color   [4]int   `json:"color"`
	Size    float64  `json:"size,omitempty"`
	Width   float64  `json:"width,omitempty"`
	Outline *Outline `json:"outline,omitempty"`
}

type Outline struct {
	Color [4]int  `json:"color"`
	Width float64 `json:"width"`
}

type FieldInfo struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Alias string `json:"alias"`
}

// ServiceInfo lists the layers of one service.
type ServiceInfo struct {
	ServiceDescription string      `json:"serviceDescription"`
	MaxRecordCount     int         `json:"maxRecordCount"`
	Layers             []LayerStub `json:"layers"`
}

type LayerStub struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	GeometryType string `json:"geometryType"`
}
