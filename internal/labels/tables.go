package labels

// Per-subject label tables replayed by the transmitter. Generated from the
// subject01..10 CCS sequences; values are operational groups 0/1/2.

var (
	labels01 = [...]Label{0, 0, 1, 1, 2, 2, 0, 1, 2, 0}
	labels02 = [...]Label{0, 1, 2, 0, 1, 2, 0, 1, 2, 0}
	labels03 = [...]Label{0, 0, 0, 1, 1, 1, 2, 2, 2, 0}
	labels04 = [...]Label{0, 2, 1, 0, 2, 1, 0, 2, 1, 0}
	labels05 = [...]Label{2, 2, 2, 1, 1, 0, 0, 0, 1, 2}
	labels06 = [...]Label{1, 1, 0, 0, 2, 2, 1, 1, 0, 0}
	labels07 = [...]Label{2, 1, 0, 2, 1, 0, 2, 1, 0, 2}
	labels08 = [...]Label{0, 1, 0, 1, 2, 2, 1, 0, 2, 1}
	labels09 = [...]Label{1, 0, 1, 0, 2, 1, 2, 0, 2, 1}
	labels10 = [...]Label{2, 0, 2, 0, 1, 1, 0, 2, 1, 0}
)

var registry = [...]Session{
	{id: "01", seq: labels01[:]},
	{id: "02", seq: labels02[:]},
	{id: "03", seq: labels03[:]},
	{id: "04", seq: labels04[:]},
	{id: "05", seq: labels05[:]},
	{id: "06", seq: labels06[:]},
	{id: "07", seq: labels07[:]},
	{id: "08", seq: labels08[:]},
	{id: "09", seq: labels09[:]},
	{id: "10", seq: labels10[:]},
}
