// Package categorize maps free-text call reasons and dispositions onto fixed taxonomies.
package categorize

import (
	"strings"

	"github.com/JakeFAU/revere-police-logs/internal/policelog"
)

// Rule pairs a category with the keywords that select it. Rules are evaluated in slice
// order and the first rule with a keyword contained in the upper-cased text wins.
type Rule[C ~string] struct {
	Category C
	Keywords []string
}

// CallTypeRules is the ordered rule list for call reasons. Historical rows were
// classified with this exact order; keep it stable.
var CallTypeRules = []Rule[policelog.CallTypeCategory]{
	{policelog.CallTypeTraffic, []string{"TRAFFIC", "MOTOR VEHICLE", "PARKING"}},
	{policelog.CallTypeMedical, []string{"MEDICAL", "AMBULANCE", "OVERDOSE"}},
	{policelog.CallTypeFireSafety, []string{"FIRE", "SMOKE", "ALARM"}},
	{policelog.CallTypeDisturbance, []string{"DISTURBANCE", "NOISE", "FIGHT"}},
	{policelog.CallTypeDomestic, []string{"DOMESTIC"}},
	{policelog.CallTypeTheftProperty, []string{"LARCENY", "THEFT", "ROBBERY", "BURGLARY", "BREAKING"}},
	{policelog.CallTypeAssistService, []string{"ASSIST", "WELL BEING", "WELL-BEING", "CHECK"}},
	{policelog.CallTypeSuspicious, []string{"SUSPICIOUS"}},
	{policelog.CallTypeEmergencyCall, []string{"911"}},
	{policelog.CallTypeInvestigation, []string{"INVESTIGATION", "FOLLOW UP"}},
	{policelog.CallTypeThreatsViolence, []string{"THREAT", "ASSAULT", "WEAPON"}},
	{policelog.CallTypeMissingPerson, []string{"MISSING"}},
}

// ActionRules is the ordered rule list for dispositions.
var ActionRules = []Rule[policelog.ActionCategory]{
	{policelog.ActionNoAction, []string{"NO ACTION"}},
	{policelog.ActionServicesRendered, []string{"SERVICES RENDERED"}},
	{policelog.ActionReport, []string{"REPORT"}},
	{policelog.ActionWarning, []string{"WARNING"}},
	{policelog.ActionArrest, []string{"ARREST"}},
	{policelog.ActionSummons, []string{"SUMMONS"}},
	{policelog.ActionReferred, []string{"REFERRED", "TRANSFER"}},
	{policelog.ActionGoneOnArrival, []string{"GONE ON ARRIVAL"}},
	{policelog.ActionUnableToLocate, []string{"UNABLE TO LOCATE"}},
	{policelog.ActionProtectiveCustody, []string{"PROTECTIVE CUSTODY"}},
	{policelog.ActionUnfounded, []string{"UNFOUNDED"}},
	{policelog.ActionInvestigated, []string{"INVESTIGATED"}},
}

// CallType classifies a call reason.
func CallType(reason string) policelog.CallTypeCategory {
	return match(CallTypeRules, reason, policelog.CallTypeOther)
}

// Action classifies a disposition.
func Action(action string) policelog.ActionCategory {
	return match(ActionRules, action, policelog.ActionOther)
}

func match[C ~string](rules []Rule[C], text string, fallback C) C {
	upper := strings.ToUpper(text)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(upper, kw) {
				return rule.Category
			}
		}
	}
	return fallback
}
