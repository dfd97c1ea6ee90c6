// Package domain turns pain and symptom survey exports into body-map charts.
//
// # Survey Format
//
// Surveys arrive as comma-separated text, one respondent per row:
//
//	<respondent id>,<zone 0>,<zone 1>,...,<zone 81>
//
// A row only counts when its first two fields are base-10 integers. Header
// rows, comment rows and anything else that fails this check are dropped
// without error. Zone i is read from field i+1. A zone field that is not an
// integer (blank, "n/a", "?") is unreported: it never satisfies a threshold,
// which is different from a reported 0.
//
// Report values follow the questionnaire scale:
//
//	0  no pain
//	1  pain
//	2  worst pain
//
// # Zones
//
// The chart has 82 fixed anatomical zones. Zones 0–40 are drawn on the front
// view, zones 41–81 on the back view. "right" and "left" are the respondent's
// sides, so front-view right zones sit on the viewer's left. See [ZoneNames].
//
// # Variants
//
// A variant is a named tally pass with a minimum report value:
//
//	any    threshold 1, every reported pain
//	worst  threshold 2, only worst pain
//
// Rows are parsed once and tallied once per variant.
//
// # Color Scale
//
// A zone with a zero tally is transparent. Otherwise its tally is placed on
// the palette by (tally-1)/(max-1), so a tally of 1 always gets the lightest
// stop and the busiest zone gets the darkest. When max is 1 every colored zone
// gets the lightest stop. Colors are interpolated linearly per RGB channel
// between the two nearest stops.
//
// # Template
//
// The chart template is an SVG document whose zone shapes occupy one line
// each, starting at [Layout.SVGOffset]. Every zone line holds one fill
// placeholder. The template also holds one placeholder each for the embedded
// body backdrop, the legend gradient stops, and the legend's max label.
// Parsed templates are never modified; filling produces a new document.
package domain
