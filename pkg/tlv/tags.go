package tlv

import "fmt"

// tagNames maps EMV tag numbers to the names used in the EMV books. The
// table is read-only after init; TagName is the only accessor.
var tagNames = map[uint]string{
	0x42:   "Issuer Identification Number",
	0x4F:   "Application Identifier (AID)",
	0x50:   "Application Label",
	0x57:   "Track 2 Equivalent Data",
	0x5A:   "Application Primary Account Number (PAN)",
	0x61:   "Application Template",
	0x6F:   "File Control Information (FCI) Template",
	0x70:   "Record Template",
	0x77:   "Response Message Template Format 2",
	0x80:   "Response Message Template Format 1",
	0x82:   "Application Interchange Profile",
	0x83:   "Command Template",
	0x84:   "Dedicated File (DF) Name",
	0x87:   "Application Priority Indicator",
	0x88:   "Short File Identifier (SFI)",
	0x8C:   "Card Risk Management Data Object List 1 (CDOL1)",
	0x8D:   "Card Risk Management Data Object List 2 (CDOL2)",
	0x8E:   "Cardholder Verification Method (CVM) List",
	0x8F:   "Certification Authority Public Key Index",
	0x90:   "Issuer Public Key Certificate",
	0x92:   "Issuer Public Key Remainder",
	0x93:   "Signed Static Application Data",
	0x94:   "Application File Locator (AFL)",
	0x95:   "Terminal Verification Results",
	0x9A:   "Transaction Date",
	0x9C:   "Transaction Type",
	0xA5:   "FCI Proprietary Template",
	0x5F20: "Cardholder Name",
	0x5F24: "Application Expiration Date",
	0x5F25: "Application Effective Date",
	0x5F28: "Issuer Country Code",
	0x5F2A: "Transaction Currency Code",
	0x5F2D: "Language Preference",
	0x5F30: "Service Code",
	0x5F34: "Application PAN Sequence Number",
	0x9F02: "Amount, Authorised (Numeric)",
	0x9F03: "Amount, Other (Numeric)",
	0x9F06: "Application Identifier (AID) - Terminal",
	0x9F07: "Application Usage Control",
	0x9F08: "Application Version Number",
	0x9F0D: "Issuer Action Code - Default",
	0x9F0E: "Issuer Action Code - Denial",
	0x9F0F: "Issuer Action Code - Online",
	0x9F10: "Issuer Application Data",
	0x9F11: "Issuer Code Table Index",
	0x9F12: "Application Preferred Name",
	0x9F1A: "Terminal Country Code",
	0x9F26: "Application Cryptogram",
	0x9F27: "Cryptogram Information Data",
	0x9F32: "Issuer Public Key Exponent",
	0x9F34: "Cardholder Verification Method (CVM) Results",
	0x9F35: "Terminal Type",
	0x9F36: "Application Transaction Counter (ATC)",
	0x9F37: "Unpredictable Number",
	0x9F38: "Processing Options Data Object List (PDOL)",
	0x9F42: "Application Currency Code",
	0x9F44: "Application Currency Exponent",
	0x9F46: "ICC Public Key Certificate",
	0x9F47: "ICC Public Key Exponent",
	0x9F48: "ICC Public Key Remainder",
	0x9F49: "Dynamic Data Authentication Data Object List (DDOL)",
	0x9F4A: "Static Data Authentication Tag List",
	0x9F4D: "Log Entry",
	0x9F66: "Terminal Transaction Qualifiers (TTQ)",
	0x9F6E: "Form Factor Indicator",
	0xBF0C: "FCI Issuer Discretionary Data",
}

// TagName returns the EMV book name for tag, or an "Unknown Tag" string
// carrying the tag's hex form when the tag is not in the table.
func TagName(tag uint) string {
	if name, ok := tagNames[tag]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Tag %X", tag)
}
