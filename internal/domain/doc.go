// Package domain models farm survey observations collected in El Salvador and
// the pure transforms that clean, repair and validate them.
//
// # Data Source
//
// Surveys arrive as spreadsheets filled in by field technicians, one row per
// farm visit. Workbooks often carry several sheets (one per campaign year) with
// slightly different headers. The extractor normalises headers to
// lowercase/underscore form before the rows reach this package:
//
//	"Arboles x mz"  →  arboles_x_mz
//	"Fecha-Realizacion del Diagnostico"  →  fecha_realizacion_del_diagnostico
//
// [FromRawRecords] maps those names onto canonical [Field] values.
//
// # Survey Data Conventions
//
// Coordinates:
//
//	Decimal degrees, WGS84. Technicians type them by hand, so the same sheet may
//	mix "13.7", "13,7" (comma decimal separator) and numeric cells.
//	Longitudes are frequently entered without the minus sign ("89.1" for -89.1).
//	Latitude and longitude columns are sometimes transposed.
//
// Tree density:
//
//	"Arboles x mz" is trees per manzana (≈0.7 ha), the customary land unit.
//
// Dates:
//
//	Free-form. Spreadsheet date cells are rendered as text; typed text is kept
//	as entered.
//
// Encoding:
//
//	Some sheets went through a Latin-1/UTF-8 round trip before reaching us, so
//	municipality names show up as "CabaÃ±as" instead of "Cabañas". A static
//	table of known corruptions is repaired in [NormalizeText].
//
// # Pipeline
//
// Each stage takes a [Batch] and returns a new one; no stage mutates its input:
//
//	FromRawRecords → NormalizeText → RepairCoordinates → FilterInBounds → ToFeatureCollection
//
// Numeric parsing ([ParseNumeric]) happens inside FromRawRecords, at the
// boundary where untyped cells become typed fields.
package domain
