// Package calendar converts between the portal's Jalali dates and the
// Gregorian dates used in storage
package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	ptime "github.com/yaa110/go-persian-calendar"
)

// GregorianLayout is the storage representation of an outage date
const GregorianLayout = "2006-01-02"

var jalaliDateRe = regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})$`)

var digitReplacer = strings.NewReplacer(
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

// ASCIIDigits replaces Persian and Arabic-Indic digits with ASCII digits
func ASCIIDigits(s string) string {
	return digitReplacer.Replace(s)
}

// JalaliToGregorian converts a Jalali date such as 1404/06/10 (slash or
// dash separated, Persian digits allowed) into YYYY-MM-DD.
func JalaliToGregorian(jalali string) (string, error) {
	s := ASCIIDigits(strings.TrimSpace(jalali))
	m := jalaliDateRe.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("invalid jalali date %q", jalali)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", fmt.Errorf("jalali date %q out of range", jalali)
	}

	pt := ptime.Date(year, ptime.Month(month), day, 12, 0, 0, 0, time.UTC)

	// ptime normalizes overflowing days (e.g. 1404/12/30 in a common year);
	// a round trip exposes them.
	back := ptime.New(pt.Time())
	if back.Year() != year || int(back.Month()) != month || back.Day() != day {
		return "", fmt.Errorf("jalali date %q does not exist", jalali)
	}
	return pt.Time().Format(GregorianLayout), nil
}

// FormatJalali formats t as a zero-padded Jalali date (1404/05/31), the
// format the portal's date inputs expect.
func FormatJalali(t time.Time) string {
	pt := ptime.New(t)
	return fmt.Sprintf("%04d/%02d/%02d", pt.Year(), int(pt.Month()), pt.Day())
}

// Today returns the current Jalali date in loc
func Today(clock clockwork.Clock, loc *time.Location) string {
	return FormatJalali(clock.Now().In(loc))
}

// Tomorrow returns the next Jalali date in loc
func Tomorrow(clock clockwork.Clock, loc *time.Location) string {
	return FormatJalali(clock.Now().In(loc).AddDate(0, 0, 1))
}

// GregorianToday returns today's storage date in loc
func GregorianToday(clock clockwork.Clock, loc *time.Location) string {
	return clock.Now().In(loc).Format(GregorianLayout)
}
