package domain

import "fmt"

// ZoneNames names the zones of the default chart, indexed by zone.
// Zones 0–40 are on the front view, 41–81 on the back view.
var ZoneNames = [DefaultSegments]string{
	"head", // 0
	"right-temple",
	"left-temple",
	"jaw",
	"neck",
	"right-shoulder",
	"left-shoulder",
	"right-clavicle",
	"left-clavicle",
	"right-chest",
	"left-chest", // 10
	"sternum",
	"upper-abdomen",
	"right-flank",
	"left-flank",
	"lower-abdomen",
	"groin",
	"right-hip",
	"left-hip",
	"right-upper-arm",
	"left-upper-arm", // 20
	"right-elbow",
	"left-elbow",
	"right-forearm",
	"left-forearm",
	"right-wrist",
	"left-wrist",
	"right-hand",
	"left-hand",
	"right-thigh",
	"left-thigh", // 30
	"right-knee",
	"left-knee",
	"right-shin",
	"left-shin",
	"right-ankle",
	"left-ankle",
	"right-foot",
	"left-foot",
	"right-toes",
	"left-toes", // 40
	"head-back",
	"neck-back",
	"right-upper-trapezius",
	"left-upper-trapezius",
	"right-shoulder-back",
	"left-shoulder-back",
	"right-shoulder-blade",
	"left-shoulder-blade",
	"upper-spine",
	"mid-spine", // 50
	"right-mid-back",
	"left-mid-back",
	"right-flank-back",
	"left-flank-back",
	"lower-spine",
	"right-lower-back",
	"left-lower-back",
	"sacrum",
	"coccyx",
	"right-buttock", // 60
	"left-buttock",
	"right-upper-arm-back",
	"left-upper-arm-back",
	"right-elbow-back",
	"left-elbow-back",
	"right-forearm-back",
	"left-forearm-back",
	"right-wrist-back",
	"left-wrist-back",
	"right-hand-back", // 70
	"left-hand-back",
	"right-hamstring",
	"left-hamstring",
	"right-knee-back",
	"left-knee-back",
	"right-calf",
	"left-calf",
	"right-achilles",
	"left-achilles",
	"right-heel", // 80
	"left-heel",
}

// ZoneName returns the name of zone i, or a generic "zone-NN" outside the default chart.
func ZoneName(i int) string {
	if i >= 0 && i < len(ZoneNames) {
		return ZoneNames[i]
	}
	return fmt.Sprintf("zone-%02d", i)
}
