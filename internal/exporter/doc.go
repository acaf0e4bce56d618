// Package exporter writes analytics results as CSV and XLSX.
//
// This package contains three main components:
//
// CSVWriter: Core CSV writing functionality with support for headers, appending,
// streaming to any io.Writer, and a UTF-8 BOM for Excel compatibility.
//
// Table: the tabular form of a result. FrameTable, ConstantMaturityTable,
// RollWindowTable, BarTable and OfficialStatTable build one from the domain
// types.
//
// WriteXLSX / WriteXLSXTo: one workbook sheet per table, numbers stored as
// numbers.
//
// Example usage:
//
//	writer := exporter.NewCSVWriter(paths)
//	table := exporter.ConstantMaturityTable(points)
//	err := writer.WriteTable("constant_maturity_SR3_cm_182.csv", table)
//
//	err = exporter.WriteXLSX(path, exporter.Sheet{Name: "SR3.cm.182", Table: table})
package exporter
