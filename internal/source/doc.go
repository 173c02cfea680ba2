// Package source reads the addresses to check.
//
// A list file is either delimited text (.csv, .txt or no extension) or an
// Excel workbook (.xlsx). In both cases the address is the first field of
// each row; the remaining fields are ignored. Row order is kept and
// duplicates are not removed, so every row becomes exactly one lookup.
package source
