package session

import "fmt"

// NotAvailable is shown for capture metadata the camera did not report.
const NotAvailable = "NA"

// AFMode mirrors the camera auto-focus control modes.
type AFMode int

const (
	AFModeOff AFMode = iota
	AFModeAuto
	AFModeMacro
	AFModeContinuousVideo
	AFModeContinuousPicture
	AFModeEDOF
)

// WhiteBalanceMode mirrors the camera auto white balance control modes.
type WhiteBalanceMode int

const (
	WhiteBalanceOff WhiteBalanceMode = iota
	WhiteBalanceAuto
	WhiteBalanceIncandescent
	WhiteBalanceFluorescent
	WhiteBalanceWarmFluorescent
	WhiteBalanceDaylight
	WhiteBalanceCloudyDaylight
	WhiteBalanceTwilight
	WhiteBalanceShade
)

var whiteBalanceNames = [...]string{
	"OFF", "AUTO", "INCANDESCENT", "FLUORESCENT", "WARM_FLUORESCENT",
	"DAYLIGHT", "CLOUDY_DAYLIGHT", "TWILIGHT", "SHADE",
}

func (m WhiteBalanceMode) String() string {
	if m >= 0 && int(m) < len(whiteBalanceNames) {
		return whiteBalanceNames[m]
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(m))
}

// CaptureMetadata holds the optional per-frame camera settings. A nil field
// means the camera did not report the value.
type CaptureMetadata struct {
	AFMode        *AFMode
	FocusDistance *float32 // diopters
	ISO           *int32
	WhiteBalance  *WhiteBalanceMode
}

// FocusText describes the focus state. An absent AF mode counts as auto.
func FocusText(m *CaptureMetadata) string {
	if m == nil {
		m = &CaptureMetadata{}
	}
	fixed := m.AFMode != nil && *m.AFMode == AFModeOff

	if fixed {
		if m.FocusDistance != nil {
			return fmt.Sprintf("Fixed: %.01f", *m.FocusDistance)
		}
		return NotAvailable
	}
	if m.FocusDistance != nil {
		return fmt.Sprintf("Auto: %.01f", *m.FocusDistance)
	}
	return "Auto"
}

// ISOText returns the sensor sensitivity or NotAvailable.
func ISOText(m *CaptureMetadata) string {
	if m == nil || m.ISO == nil {
		return NotAvailable
	}
	return fmt.Sprintf("%d", *m.ISO)
}

// WhiteBalanceText returns the white balance mode name or NotAvailable.
func WhiteBalanceText(m *CaptureMetadata) string {
	if m == nil || m.WhiteBalance == nil {
		return NotAvailable
	}
	return m.WhiteBalance.String()
}

// FPSText formats a frame rate; NaN is printed as is.
func FPSText(fps float64) string {
	return fmt.Sprintf("FPS: %.01f", fps)
}

// CameraText formats the camera status line.
func CameraText(m *CaptureMetadata, freeGB float64) string {
	return fmt.Sprintf("FOC: %s,  ISO: %s,  WB: %s,  Free space: %.02f Gb",
		FocusText(m), ISOText(m), WhiteBalanceText(m), freeGB)
}
