package rws

// ========================= /ctrl, /rw/system =========================

type ControllerInfo struct {
	Type     string `json:"_type"`
	Title    string `json:"_title"`
	Datetime string `json:"datetime"`
	Name     string `json:"ctrl-name"`
	CtrlType string `json:"ctrl-type"`
}

type SystemProperties struct {
	Type          string         `json:"_type"`
	Title         string         `json:"_title"`
	Name          string         `json:"name"`
	RWVersion     string         `json:"rwversion"`
	RWVersionName string         `json:"rwversionname"`
	Options       []SystemOption `json:"options"`
}

type SystemOption struct {
	Type   string `json:"_type"`
	Title  string `json:"_title"`
	Option string `json:"option"`
}

// ========================= /rw/iosystem =========================

type IOSignal struct {
	Title    string `json:"_title"`
	Name     string `json:"name"`
	Type     string `json:"type"` // DI, DO, AI, AO, GI, GO
	Category string `json:"category"`
	Value    string `json:"lvalue"`
	State    string `json:"lstate"`
	Unit     string `json:"unitnm"`
}

// ========================= /rw/rapid =========================

type RapidTask struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	State      string `json:"taskstate"`
	ExcState   string `json:"excstate"`
	Active     string `json:"active"`
	MotionTask string `json:"motiontask"`
}

type TaskState struct {
	Title        string `json:"_title"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	TaskState    string `json:"taskstate"`
	ExcState     string `json:"excstate"`
	Active       string `json:"active"`
	MotionTask   string `json:"motiontask"`
	TaskType     string `json:"tasktype"`
	Trust        string `json:"trust"`
	TaskID       string `json:"taskID"`
	ExecMode     string `json:"execmode"`
	ExcType      string `json:"exctype"`
	ProdEntryPt  string `json:"prodentrypt"`
	BindRef      string `json:"bind_ref"`
	InForeground string `json:"task_in_forgnd"`
}

type ExecutionState struct {
	ControllerState string `json:"ctrlexecstate"`
	Cycle           string `json:"cycle"`
}

type RapidVariable struct {
	Value string `json:"value"`
	Type  string `json:"_type"`
	Title string `json:"_title"`
}

// ========================= /fileservice =========================

type FileItem struct {
	Title    string `json:"_title"`
	Type     string `json:"_type"` // fs-file или fs-dir
	Created  string `json:"fs-cdate"`
	Modified string `json:"fs-mdate"`
	Size     string `json:"fs-size"`
	ReadOnly string `json:"fs-readonly"`
}
