package one

import "testing"

const sampleVM = `<VM>
  <ID>36551</ID>
  <UID>120</UID>
  <GNAME>gname</GNAME>
  <TEMPLATE>
    <DISK><IMAGE_ID>31</IMAGE_ID><SIZE>10</SIZE></DISK>
    <DISK><SIZE>1</SIZE></DISK>
    <NIC><IP>10.0.0.1</IP></NIC>
    <NIC><IP>147.251.1.1</IP></NIC>
    <CONTEXT><![CDATA[raw]]></CONTEXT>
  </TEMPLATE>
  <HISTORY_RECORDS>
    <HISTORY><SEQ>0</SEQ><HID>1</HID></HISTORY>
    <HISTORY><SEQ>1</SEQ><HID>7</HID></HISTORY>
  </HISTORY_RECORDS>
</VM>`

func TestParseElementPaths(t *testing.T) {
	vm, err := ParseElement([]byte(sampleVM))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if vm.Name() != "VM" || vm.ID() != "36551" {
		t.Fatalf("unexpected root %s id=%s", vm.Name(), vm.ID())
	}
	cases := map[string]string{
		"TEMPLATE/DISK[1]/IMAGE_ID":          "31",
		"TEMPLATE/DISK[2]/SIZE":              "1",
		"TEMPLATE/DISK/SIZE":                 "10",
		"HISTORY_RECORDS/HISTORY[last()]/HID": "7",
		"TEMPLATE/CONTEXT":                   "raw",
		"TEMPLATE/DISK[3]/SIZE":              "",
		"USER_TEMPLATE/X509_DN":              "",
	}
	for path, want := range cases {
		if got := vm.Get(path); got != want {
			t.Fatalf("Get(%q) = %q, want %q", path, got, want)
		}
	}
	if n := len(vm.Each("TEMPLATE/NIC/IP")); n != 2 {
		t.Fatalf("expect 2 nic ips, got %d", n)
	}
	if ips := vm.Each("/TEMPLATE/NIC/IP"); len(ips) != 2 || ips[1].Text() != "147.251.1.1" {
		t.Fatalf("leading slash should stay relative to the record")
	}
	if vm.Get("TEMPLATE/DISK[") != "" || vm.Each("TEMPLATE/DISK[") != nil {
		t.Fatalf("malformed path should match nothing")
	}
	if !vm.Has("HISTORY_RECORDS") || vm.Has("MONITORING") {
		t.Fatalf("unexpected Has result")
	}
}

func TestParseElementRejectsBrokenXML(t *testing.T) {
	if _, err := ParseElement([]byte("<VM><ID>1</ID>")); err == nil {
		t.Fatalf("expected error for unclosed document")
	}
	if _, err := ParseElement([]byte("")); err == nil {
		t.Fatalf("expected error for empty document")
	}
}
